package main

import (
	"fmt"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/internal/store"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

type showCommand struct {
	Args struct {
		GroupID string `positional-arg-name:"group-id" description:"Group id (hex); omit to list all groups"`
	} `positional-args:"true"`
}

func (cmd *showCommand) Execute(args []string) error {
	st, err := store.Open(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if cmd.Args.GroupID == "" {
		return listGroups(st)
	}

	g, err := st.GetGroup(cmd.Args.GroupID)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("no group %s in store", cmd.Args.GroupID)
	}

	printGroup(g)
	return nil
}

func listGroups(st *store.Store) error {
	groups, err := st.GetAllGroups()
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No groups found.")
		return nil
	}

	fmt.Printf("Found %d group(s):\n\n", len(groups))
	for _, g := range groups {
		title := g.Title
		if title == "" {
			title = "(unnamed)"
		}
		fmt.Printf("  %s\n", title)
		fmt.Printf("    ID:       %s\n", g.GroupID)
		fmt.Printf("    Revision: %d\n", g.Revision)
		fmt.Printf("    Active:   %t\n", g.Active)
		fmt.Println()
	}
	return nil
}

func printGroup(g *store.Group) {
	title := g.Title
	if title == "" {
		title = "(unnamed)"
	}
	fmt.Printf("%s\n", title)
	fmt.Printf("  ID:       %s\n", g.GroupID)
	fmt.Printf("  Revision: %d\n", g.Revision)
	fmt.Printf("  Active:   %t\n", g.Active)

	if g.State == nil {
		fmt.Println("  (no decrypted state stored)")
		return
	}

	if g.State.DisappearingMessagesTimer > 0 {
		fmt.Printf("  Timer:    %ds\n", g.State.DisappearingMessagesTimer)
	}
	fmt.Printf("  Access:   attributes=%s members=%s\n",
		accessString(g.State.AttributesAccess), accessString(g.State.MembersAccess))

	fmt.Printf("  Members (%d):\n", len(g.State.Members))
	for _, m := range g.State.Members {
		key := "no profile key"
		if !m.ProfileKey.IsZero() {
			key = "profile key known"
		}
		fmt.Printf("    %s  %s  joined@%d  %s\n", m.UUID, roleString(m.Role), m.JoinedAtRevision, key)
	}

	if len(g.State.PendingMembers) > 0 {
		fmt.Printf("  Pending (%d):\n", len(g.State.PendingMembers))
		for _, p := range g.State.PendingMembers {
			who := p.UUID.String()
			if p.UUID == zkgroup.UnknownUUID {
				who = "(not decryptable)"
			}
			fmt.Printf("    %s  invited by %s\n", who, p.AddedByUUID)
		}
	}
}

func roleString(r groupproto.Role) string {
	switch r {
	case groupproto.RoleDefault:
		return "member"
	case groupproto.RoleAdministrator:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int32(r))
	}
}

func accessString(a groupproto.AccessRequired) string {
	switch a {
	case groupproto.AccessAny:
		return "any"
	case groupproto.AccessMember:
		return "member"
	case groupproto.AccessAdministrator:
		return "admin"
	default:
		return fmt.Sprintf("access(%d)", int32(a))
	}
}
