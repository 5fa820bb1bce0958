package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/internal/groupsv2"
	"github.com/gwillem/groupsync-go/internal/store"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

type advanceCommand struct {
	Notary string `long:"notary" description:"Verify change signatures against this public key (32 bytes hex)"`

	Args struct {
		GroupID string `positional-arg-name:"group-id" required:"true" description:"Group id (hex) of a stored group"`
		File    string `positional-arg-name:"changes-file" required:"true" description:"File holding a serialized change log"`
	} `positional-args:"true" required:"true"`
}

// Execute replays a change-log dump against the stored group state without
// touching the network. Signatures are only checked when --notary is given.
func (cmd *advanceCommand) Execute(args []string) error {
	st, err := store.Open(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	g, err := st.GetGroup(cmd.Args.GroupID)
	if err != nil {
		return err
	}
	if g == nil || g.State == nil {
		return fmt.Errorf("no group %s in store", cmd.Args.GroupID)
	}

	raw, err := os.ReadFile(cmd.Args.File)
	if err != nil {
		return err
	}
	var changes groupproto.GroupChanges
	if err := changes.Unmarshal(raw); err != nil {
		return fmt.Errorf("parse change log: %w", err)
	}

	var notaryKey ed25519.PublicKey
	verify := cmd.Notary != ""
	if verify {
		key, err := hex.DecodeString(cmd.Notary)
		if err != nil {
			return fmt.Errorf("notary key: %w", err)
		}
		if len(key) != ed25519.PublicKeySize {
			return fmt.Errorf("notary key: want %d bytes, got %d", ed25519.PublicKeySize, len(key))
		}
		notaryKey = ed25519.PublicKey(key)
	}

	var masterKey zkgroup.MasterKey
	copy(masterKey[:], g.MasterKey)
	params, err := zkgroup.DeriveGroupSecretParams(masterKey)
	if err != nil {
		return fmt.Errorf("derive group params: %w", err)
	}
	log := logger()
	ops := groupsv2.NewOperations(params, notaryKey, log)

	entries := make([]groupsv2.ServerGroupLogEntry, 0, len(changes.GroupChanges))
	for _, entry := range changes.GroupChanges {
		var out groupsv2.ServerGroupLogEntry
		if entry.GroupState != nil {
			state, err := ops.DecryptGroup(entry.GroupState)
			if err != nil {
				return fmt.Errorf("change log state: %w", err)
			}
			out.Group = state
		}
		change, err := ops.DecryptChange(entry.GroupChange, verify)
		if err != nil {
			return fmt.Errorf("change log change: %w", err)
		}
		out.Change = change
		entries = append(entries, out)
	}

	result, err := groupsv2.AdvanceGroupState(groupsv2.GlobalGroupState{
		LocalState: g.State,
		History:    entries,
	}, groupsv2.LatestRevision, log)
	if err != nil {
		return fmt.Errorf("advance: %w", err)
	}
	if result.UpdatedState == nil {
		fmt.Println("Nothing to apply; state unchanged.")
		return nil
	}

	keys := groupsv2.NewProfileKeySet(log)
	for _, pair := range result.Applied {
		keys.AddKeysFromGroup(pair.Group)
		if pair.Change != nil {
			keys.AddKeysFromChange(pair.Change)
		}
		if err := st.InsertGroupUpdateMessage(g.GroupID, pair.Group.Revision, pair.Change); err != nil {
			return err
		}
	}

	if err := st.UpdateGroup(&store.Group{
		GroupID:   g.GroupID,
		MasterKey: g.MasterKey,
		Title:     result.UpdatedState.Title,
		Revision:  result.UpdatedState.Revision,
		Active:    g.Active,
		State:     result.UpdatedState,
	}); err != nil {
		return err
	}
	updatedKeys, err := st.PersistProfileKeySet(keys)
	if err != nil {
		return err
	}

	fmt.Printf("Applied %d change(s); now at revision %d.\n", len(result.Applied), result.UpdatedState.Revision)
	if len(updatedKeys) > 0 {
		fmt.Printf("Profile keys updated for %d recipient(s)\n", len(updatedKeys))
	}
	return nil
}
