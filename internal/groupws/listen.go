package groupws

import (
	"context"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/gwillem/groupsync-go/internal/groupproto"
)

// PushHandler processes one pushed signed change. groupID is the 32-byte
// group identifier. A handler error nacks the frame so the server redelivers.
type PushHandler func(ctx context.Context, groupID []byte, change *groupproto.GroupChange) error

// Listen reads pushed change notifications until the context is cancelled
// or the connection fails, acking each frame. logger may be nil.
func Listen(ctx context.Context, conn *Conn, handler PushHandler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		push, err := conn.ReadPush(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		status := uint32(200)
		if err := handler(ctx, push.GroupID, push.GroupChange); err != nil {
			logger.Warn("push handler failed",
				zap.String("groupID", hex.EncodeToString(push.GroupID)),
				zap.Error(err))
			status = 500
		}
		if err := conn.Ack(ctx, push.ID, status); err != nil {
			return err
		}
	}
}
