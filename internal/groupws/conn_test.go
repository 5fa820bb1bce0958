package groupws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/groupsync-go/internal/groupproto"
)

// pushServer accepts one websocket client, sends the given pushes, and
// records the acks it gets back.
func pushServer(t *testing.T, pushes []*groupproto.GroupPush, acks chan<- *groupproto.GroupPushAck) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		ctx := r.Context()
		for _, push := range pushes {
			if err := ws.Write(ctx, websocket.MessageBinary, push.Marshal()); err != nil {
				return
			}
			_, data, err := ws.Read(ctx)
			if err != nil {
				return
			}
			ack := new(groupproto.GroupPushAck)
			if err := ack.Unmarshal(data); err != nil {
				t.Errorf("unmarshal ack: %v", err)
				return
			}
			acks <- ack
		}
		if len(pushes) == 0 {
			// Hold the connection open until the client goes away.
			ws.Read(ctx)
			return
		}
		ws.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestListenAcksPushes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pushes := []*groupproto.GroupPush{
		{ID: 1, GroupID: []byte("group-a"), GroupChange: &groupproto.GroupChange{Actions: []byte("a1")}},
		{ID: 2, GroupID: []byte("group-b"), GroupChange: &groupproto.GroupChange{Actions: []byte("a2")}},
	}
	acks := make(chan *groupproto.GroupPushAck, len(pushes))
	url := pushServer(t, pushes, acks)

	conn, err := Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var handled []uint64
	err = Listen(ctx, conn, func(ctx context.Context, groupID []byte, change *groupproto.GroupChange) error {
		handled = append(handled, uint64(len(handled)+1))
		if string(groupID) == "group-b" {
			return errors.New("unknown group")
		}
		return nil
	}, nil)
	// The server closes after the last ack; Listen surfaces that as a read
	// error, which is the caller's cue to reconnect.
	require.Error(t, err)

	assert.Equal(t, []uint64{1, 2}, handled)
	first, second := <-acks, <-acks
	assert.Equal(t, &groupproto.GroupPushAck{ID: 1, Status: 200}, first)
	assert.Equal(t, &groupproto.GroupPushAck{ID: 2, Status: 500}, second)
}

func TestListenStopsOnContextCancel(t *testing.T) {
	acks := make(chan *groupproto.GroupPushAck, 1)
	url := pushServer(t, nil, acks)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dialCancel()
	conn, err := Dial(dialCtx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err = Listen(ctx, conn, func(context.Context, []byte, *groupproto.GroupChange) error {
		return nil
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
