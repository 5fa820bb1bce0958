package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"

	groupsync "github.com/gwillem/groupsync-go"
	"github.com/gwillem/groupsync-go/internal/groupapi"
)

type syncCommand struct {
	APIURL   string `long:"api-url" description:"Group server base URL" required:"true"`
	Username string `long:"username" description:"Account username for the credential endpoint" required:"true"`
	Password string `long:"password" description:"Account password for the credential endpoint" required:"true"`
	Notary   string `long:"notary" description:"Server change-signing public key, 32 bytes hex" required:"true"`
	Target   uint32 `long:"target" description:"Stop once this revision is reached (default: latest)"`

	Args struct {
		MasterKey string `positional-arg-name:"master-key-hex" required:"true" description:"Group master key, 32 bytes hex"`
	} `positional-args:"true" required:"true"`
}

func (cmd *syncCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	masterKey, err := parseMasterKey(cmd.Args.MasterKey)
	if err != nil {
		return err
	}

	notaryKey, err := hex.DecodeString(cmd.Notary)
	if err != nil {
		return fmt.Errorf("notary key: %w", err)
	}
	if len(notaryKey) != ed25519.PublicKeySize {
		return fmt.Errorf("notary key: want %d bytes, got %d", ed25519.PublicKeySize, len(notaryKey))
	}

	c, err := groupsync.NewClient(groupsync.Config{
		DBPath:      opts.DB,
		APIURL:      cmd.APIURL,
		AccountAuth: groupapi.BasicAuth{Username: cmd.Username, Password: cmd.Password},
		NotaryKey:   ed25519.PublicKey(notaryKey),
		Logger:      logger(),
	})
	if err != nil {
		return err
	}
	defer c.Close()

	// Revision 0 is the creation state; asking for it is the same as asking
	// for whatever the server has.
	target := cmd.Target
	if target == 0 {
		target = groupsync.LatestRevision
	}

	result, err := c.UpdateGroupToRevision(ctx, masterKey, target)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}

	fmt.Printf("Status:   %s\n", result.Status)
	if result.State != nil {
		fmt.Printf("Revision: %d\n", result.State.Revision)
		fmt.Printf("Title:    %s\n", result.State.Title)
		fmt.Printf("Members:  %d\n", len(result.State.Members))
	}
	if len(result.UpdatedProfileKeys) > 0 {
		fmt.Printf("Profile keys updated for %d recipient(s)\n", len(result.UpdatedProfileKeys))
	}
	return nil
}
