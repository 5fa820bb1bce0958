package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"

	groupsync "github.com/gwillem/groupsync-go"
)

type listenCommand struct {
	WSURL  string `long:"ws-url" description:"Group push websocket URL" required:"true"`
	Notary string `long:"notary" description:"Server change-signing public key, 32 bytes hex" required:"true"`
}

// Execute keeps known groups current by applying server-pushed signed
// changes until interrupted.
func (cmd *listenCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	notaryKey, err := hex.DecodeString(cmd.Notary)
	if err != nil {
		return fmt.Errorf("notary key: %w", err)
	}
	if len(notaryKey) != ed25519.PublicKeySize {
		return fmt.Errorf("notary key: want %d bytes, got %d", ed25519.PublicKeySize, len(notaryKey))
	}

	c, err := groupsync.NewClient(groupsync.Config{
		DBPath:    opts.DB,
		NotaryKey: ed25519.PublicKey(notaryKey),
		Logger:    logger(),
	})
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("Listening on %s (interrupt to stop)\n", cmd.WSURL)
	err = c.ListenPushes(ctx, cmd.WSURL)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
