// Package groupsync keeps local copies of encrypted group state in step
// with the group server: it fetches signed change logs, advances the local
// plaintext state revision by revision, and harvests member profile keys
// along the way.
package groupsync

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gwillem/groupsync-go/internal/groupapi"
	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/internal/groupsv2"
	"github.com/gwillem/groupsync-go/internal/groupws"
	"github.com/gwillem/groupsync-go/internal/store"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// LatestRevision requests synchronization to the newest revision the
// server has.
const LatestRevision = groupsv2.LatestRevision

// Engine errors re-exported for callers matching with errors.Is.
var (
	ErrNotAMember   = groupsv2.ErrNotAMember
	ErrVerification = groupsv2.ErrVerification
)

// GroupAPI is the server surface the synchronizer needs. Implemented by
// groupapi.Client; tests substitute fakes.
type GroupAPI interface {
	GetGroup(ctx context.Context, params zkgroup.GroupSecretParams) (*groupproto.Group, error)
	GetGroupHistory(ctx context.Context, params zkgroup.GroupSecretParams, fromRevision uint32) ([]*groupproto.GroupChangeState, error)
}

// UpdateStatus classifies the outcome of an update attempt.
type UpdateStatus int

const (
	// GroupNotUpdated means the server history contained nothing new.
	GroupNotUpdated UpdateStatus = iota
	// GroupUpdated means new state was applied and persisted.
	GroupUpdated
	// GroupConsistentOrAhead means the local state already satisfies the
	// requested revision; no network traffic happened.
	GroupConsistentOrAhead
)

func (s UpdateStatus) String() string {
	switch s {
	case GroupNotUpdated:
		return "not-updated"
	case GroupUpdated:
		return "updated"
	case GroupConsistentOrAhead:
		return "consistent-or-ahead"
	default:
		return fmt.Sprintf("UpdateStatus(%d)", int(s))
	}
}

// GroupUpdateResult reports what an update attempt did.
type GroupUpdateResult struct {
	Status UpdateStatus
	// State is the group state after the attempt (also set for
	// GroupConsistentOrAhead).
	State *groupsv2.DecryptedGroup
	// UpdatedProfileKeys lists recipients whose stored profile key changed.
	UpdatedProfileKeys []uuid.UUID
}

// Client is the group synchronization facade. Concurrent updates of the
// same group are serialized; different groups proceed in parallel.
type Client struct {
	store     *store.Store
	api       GroupAPI
	notaryKey ed25519.PublicKey
	tlsConf   *tls.Config
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per group id
}

// Config carries the collaborators a Client needs.
type Config struct {
	// DBPath is the sqlite path; empty means the default data dir.
	DBPath string
	// APIURL is the group server base URL. Ignored when API is set.
	APIURL string
	// AccountAuth authenticates the credential endpoint.
	AccountAuth groupapi.BasicAuth
	// NotaryKey is the server's change-signing public key.
	NotaryKey ed25519.PublicKey
	// TLSConfig overrides the TLS configuration; nil uses defaults.
	TLSConfig *tls.Config
	// API overrides the server client, for tests.
	API GroupAPI
	// Logger may be nil.
	Logger *zap.Logger
}

// NewClient opens the store and wires the server client.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	api := cfg.API
	if api == nil {
		transport := groupapi.NewTransport(cfg.APIURL, cfg.TLSConfig, logger)
		creds := groupapi.NewCredentialProvider(transport, cfg.AccountAuth, logger)
		api = groupapi.NewClient(transport, creds, logger)
	}

	return &Client{
		store:     st,
		api:       api,
		notaryKey: cfg.NotaryKey,
		tlsConf:   cfg.TLSConfig,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the underlying store.
func (c *Client) Close() error {
	return c.store.Close()
}

// Store exposes the underlying store for read paths (CLI, message render).
func (c *Client) Store() *store.Store {
	return c.store
}

func (c *Client) groupLock(groupID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[groupID] = lock
	}
	return lock
}

// UpdateGroupToRevision brings the local copy of the group identified by
// masterKey up to the target revision (LatestRevision drains everything
// the server has). When the local state already satisfies the target, no
// network request is made.
//
// A server answer of not-a-member marks the group inactive and returns
// ErrNotAMember.
func (c *Client) UpdateGroupToRevision(ctx context.Context, masterKey zkgroup.MasterKey, target uint32) (GroupUpdateResult, error) {
	identifier, err := zkgroup.GroupIdentifierFromMasterKey(masterKey)
	if err != nil {
		return GroupUpdateResult{}, fmt.Errorf("derive group identifier: %w", err)
	}
	groupID := identifier.String()
	lock := c.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	local, err := c.store.GetGroup(groupID)
	if err != nil {
		return GroupUpdateResult{}, err
	}

	if local != nil && local.State != nil && target != LatestRevision && local.Revision >= target {
		c.logger.Debug("group already at or past target",
			zap.String("groupID", groupID),
			zap.Uint32("local", local.Revision),
			zap.Uint32("target", target))
		return GroupUpdateResult{Status: GroupConsistentOrAhead, State: local.State}, nil
	}

	params, err := zkgroup.DeriveGroupSecretParams(masterKey)
	if err != nil {
		return GroupUpdateResult{}, fmt.Errorf("derive group params: %w", err)
	}
	ops := groupsv2.NewOperations(params, c.notaryKey, c.logger)

	result, err := c.sync(ctx, ops, groupID, masterKey, local, target)
	if errors.Is(err, groupsv2.ErrNotAMember) {
		c.logger.Info("no longer a member, deactivating group", zap.String("groupID", groupID))
		if local != nil {
			if storeErr := c.store.SetGroupActive(groupID, false); storeErr != nil {
				c.logger.Warn("deactivate group", zap.String("groupID", groupID), zap.Error(storeErr))
			}
		}
		return GroupUpdateResult{}, fmt.Errorf("group %s: %w", groupID, groupsv2.ErrNotAMember)
	}
	return result, err
}

// sync runs the fetch/advance/persist loop under the group lock.
func (c *Client) sync(ctx context.Context, ops *groupsv2.Operations, groupID string, masterKey zkgroup.MasterKey, local *store.Group, target uint32) (GroupUpdateResult, error) {
	var current *groupsv2.DecryptedGroup
	if local != nil {
		current = local.State
	}
	initial := current

	keys := groupsv2.NewProfileKeySet(c.logger)
	var applied []groupsv2.AppliedGroupChangeLog

	// A group we have no state for starts from a full snapshot; so does a
	// history response the engine cannot bridge.
	if current == nil {
		newState, err := c.fetchCurrentState(ctx, ops)
		if err != nil {
			return GroupUpdateResult{}, err
		}
		applied = append(applied, groupsv2.AppliedGroupChangeLog{Group: newState})
		keys.AddKeysFromGroup(newState)
		current = newState
	}

	for target == groupsv2.LatestRevision || current.Revision < target {
		entries, err := c.fetchHistory(ctx, ops, current.Revision+1)
		if err != nil {
			return GroupUpdateResult{}, err
		}
		if len(entries) == 0 {
			break
		}

		result, err := groupsv2.AdvanceGroupState(groupsv2.GlobalGroupState{
			LocalState: current,
			History:    entries,
		}, target, c.logger)
		if errors.Is(err, groupsv2.ErrRevisionGap) {
			// The log the server gave us does not connect to our state;
			// fall back to a full snapshot and continue from there.
			c.logger.Info("revision gap in history, refetching full state",
				zap.String("groupID", groupID), zap.Error(err))
			newState, fetchErr := c.fetchCurrentState(ctx, ops)
			if fetchErr != nil {
				return GroupUpdateResult{}, fetchErr
			}
			change := groupsv2.ReconstructGroupChange(current, newState)
			applied = append(applied, groupsv2.AppliedGroupChangeLog{Group: newState, Change: change})
			keys.AddKeysFromGroup(newState)
			current = newState
			break
		}
		if err != nil {
			return GroupUpdateResult{}, err
		}

		for _, pair := range result.Applied {
			keys.AddKeysFromGroup(pair.Group)
			if pair.Change != nil {
				keys.AddKeysFromChange(pair.Change)
			}
		}
		applied = append(applied, result.Applied...)
		if result.UpdatedState != nil {
			current = result.UpdatedState
		}

		if len(result.Remaining) > 0 {
			// Target reached with history left over; it stays on the server
			// for the next attempt.
			break
		}
		if result.UpdatedState == nil {
			break
		}
	}

	return c.persist(groupID, masterKey, current, applied, keys, current != initial)
}

// fetchCurrentState fetches and decrypts the full group snapshot.
func (c *Client) fetchCurrentState(ctx context.Context, ops *groupsv2.Operations) (*groupsv2.DecryptedGroup, error) {
	encrypted, err := c.api.GetGroup(ctx, ops.SecretParams())
	if err != nil {
		return nil, err
	}
	return ops.DecryptGroup(encrypted)
}

// fetchHistory fetches one page of the change log and decrypts it into
// engine entries. Signatures were already checked by the server on this
// authenticated channel; an entry whose change is from an unknown epoch
// keeps its state snapshot and drops the change.
func (c *Client) fetchHistory(ctx context.Context, ops *groupsv2.Operations, fromRevision uint32) ([]groupsv2.ServerGroupLogEntry, error) {
	raw, err := c.api.GetGroupHistory(ctx, ops.SecretParams(), fromRevision)
	if err != nil {
		return nil, err
	}

	entries := make([]groupsv2.ServerGroupLogEntry, 0, len(raw))
	for _, entry := range raw {
		var out groupsv2.ServerGroupLogEntry
		if entry.GroupState != nil {
			state, err := ops.DecryptGroup(entry.GroupState)
			if err != nil {
				return nil, fmt.Errorf("history state: %w", err)
			}
			out.Group = state
		}
		change, err := ops.DecryptChange(entry.GroupChange, false)
		if err != nil {
			return nil, fmt.Errorf("history change: %w", err)
		}
		out.Change = change
		entries = append(entries, out)
	}
	return entries, nil
}

// persist writes the new state, the per-transition update messages, and
// the harvested profile keys. changed covers revision-only advances too:
// a no-op change produces no update message but the stored revision must
// still move, or every later sync refetches the same history.
func (c *Client) persist(groupID string, masterKey zkgroup.MasterKey, current *groupsv2.DecryptedGroup, applied []groupsv2.AppliedGroupChangeLog, keys *groupsv2.ProfileKeySet, changed bool) (GroupUpdateResult, error) {
	if !changed {
		return GroupUpdateResult{Status: GroupNotUpdated, State: current}, nil
	}

	existing, err := c.store.GetGroup(groupID)
	if err != nil {
		return GroupUpdateResult{}, err
	}
	record := &store.Group{
		GroupID:   groupID,
		MasterKey: masterKey[:],
		Title:     current.Title,
		Revision:  current.Revision,
		Active:    true,
		State:     current,
	}
	if existing == nil {
		err = c.store.CreateGroup(record)
	} else {
		err = c.store.UpdateGroup(record)
	}
	if err != nil {
		return GroupUpdateResult{}, err
	}

	for _, pair := range applied {
		if err := c.store.InsertGroupUpdateMessage(groupID, pair.Group.Revision, pair.Change); err != nil {
			return GroupUpdateResult{}, err
		}
	}

	updatedKeys, err := c.store.PersistProfileKeySet(keys)
	if err != nil {
		return GroupUpdateResult{}, err
	}

	c.logger.Info("group updated",
		zap.String("groupID", groupID),
		zap.Uint32("revision", current.Revision),
		zap.Int("transitions", len(applied)),
		zap.Int("profileKeys", len(updatedKeys)))

	return GroupUpdateResult{
		Status:             GroupUpdated,
		State:              current,
		UpdatedProfileKeys: updatedKeys,
	}, nil
}

// ListenPushes connects to the push endpoint and feeds every pushed
// signed change through HandlePushedChange until the context is cancelled
// or the connection fails. A handler failure nacks the frame so the
// server redelivers; it does not stop the listener.
func (c *Client) ListenPushes(ctx context.Context, url string) error {
	conn, err := groupws.Dial(ctx, url, c.tlsConf)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	c.logger.Info("listening for pushed group changes", zap.String("url", url))
	return groupws.Listen(ctx, conn, c.HandlePushedChange, c.logger)
}

// HandlePushedChange feeds one websocket-pushed signed change into the
// same advance path. Pushed frames are unauthenticated relative to the
// group, so the notary signature is always verified. Pushes for unknown
// groups are ignored.
func (c *Client) HandlePushedChange(ctx context.Context, groupID []byte, signed *groupproto.GroupChange) error {
	id := fmt.Sprintf("%x", groupID)
	lock := c.groupLock(id)
	lock.Lock()
	defer lock.Unlock()

	local, err := c.store.GetGroup(id)
	if err != nil {
		return err
	}
	if local == nil || local.State == nil {
		c.logger.Debug("push for unknown group, ignoring", zap.String("groupID", id))
		return nil
	}

	var masterKey zkgroup.MasterKey
	copy(masterKey[:], local.MasterKey)
	params, err := zkgroup.DeriveGroupSecretParams(masterKey)
	if err != nil {
		return fmt.Errorf("derive group params: %w", err)
	}
	ops := groupsv2.NewOperations(params, c.notaryKey, c.logger)

	change, err := ops.DecryptChange(signed, true)
	if err != nil {
		return err
	}
	if change == nil {
		// Unknown epoch. The regular sync path will pick the revision up
		// as a full state later.
		return nil
	}

	result, err := groupsv2.AdvanceGroupState(groupsv2.GlobalGroupState{
		LocalState: local.State,
		History:    []groupsv2.ServerGroupLogEntry{{Change: change}},
	}, groupsv2.LatestRevision, c.logger)
	if errors.Is(err, groupsv2.ErrRevisionGap) {
		c.logger.Info("pushed change does not connect, deferring to full sync",
			zap.String("groupID", id),
			zap.Uint32("pushed", change.Revision),
			zap.Uint32("local", local.State.Revision))
		return nil
	}
	if err != nil {
		return err
	}
	if result.UpdatedState == nil {
		return nil
	}

	keys := groupsv2.NewProfileKeySet(c.logger)
	for _, pair := range result.Applied {
		keys.AddKeysFromGroup(pair.Group)
		if pair.Change != nil {
			keys.AddKeysFromChange(pair.Change)
		}
	}
	_, err = c.persist(id, masterKey, result.UpdatedState, result.Applied, keys, true)
	return err
}
