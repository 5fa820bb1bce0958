package main

import (
	"fmt"

	"github.com/gwillem/groupsync-go/internal/store"
)

type recipientsCommand struct{}

func (cmd *recipientsCommand) Execute(args []string) error {
	st, err := store.Open(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	recipients, err := st.ListRecipients()
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		fmt.Println("No recipients found.")
		return nil
	}

	fmt.Printf("Found %d recipient(s):\n\n", len(recipients))
	for _, r := range recipients {
		key := "-"
		if len(r.ProfileKey) > 0 {
			key = fmt.Sprintf("%x", r.ProfileKey)
		}
		fmt.Printf("  %s  %s\n", r.UUID, key)
	}
	return nil
}
