package main

import (
	"encoding/hex"
	"fmt"

	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

type deriveCommand struct {
	Args struct {
		MasterKey string `positional-arg-name:"master-key-hex" required:"true" description:"Group master key, 32 bytes hex"`
	} `positional-args:"true" required:"true"`
}

func (cmd *deriveCommand) Execute(args []string) error {
	masterKey, err := parseMasterKey(cmd.Args.MasterKey)
	if err != nil {
		return err
	}

	params, err := zkgroup.DeriveGroupSecretParams(masterKey)
	if err != nil {
		return fmt.Errorf("derive params: %w", err)
	}
	public := params.GetPublicParams()

	fmt.Printf("Group ID:      %s\n", public.GetGroupIdentifier())
	fmt.Printf("Public params: %x\n", public[:])
	return nil
}

func parseMasterKey(s string) (zkgroup.MasterKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return zkgroup.MasterKey{}, fmt.Errorf("master key: %w", err)
	}
	return zkgroup.NewMasterKey(raw)
}
