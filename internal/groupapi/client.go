package groupapi

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/internal/groupsv2"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// Client fetches encrypted group state and history from the group server.
// All requests authenticate with the per-group credential pair from the
// CredentialProvider.
type Client struct {
	transport *Transport
	creds     *CredentialProvider
	logger    *zap.Logger
}

// NewClient creates a group API client. logger may be nil.
func NewClient(transport *Transport, creds *CredentialProvider, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{transport: transport, creds: creds, logger: logger}
}

// GetGroup fetches the current encrypted group state.
func (c *Client) GetGroup(ctx context.Context, params zkgroup.GroupSecretParams) (*groupproto.Group, error) {
	auth, err := c.creds.AuthForToday(ctx, params)
	if err != nil {
		return nil, err
	}

	body, status, err := c.transport.Get(ctx, "/v2/groups/", &auth)
	if err != nil {
		return nil, fmt.Errorf("groupapi: get group: %w", err)
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}

	// The server wraps the group in a GroupResponse envelope.
	var resp groupproto.GroupResponse
	if err := resp.Unmarshal(body); err != nil || resp.Group == nil {
		var group groupproto.Group
		if err2 := group.Unmarshal(body); err2 != nil {
			return nil, fmt.Errorf("groupapi: unmarshal group response: %w", err2)
		}
		return &group, nil
	}
	return resp.Group, nil
}

// GetGroupHistory fetches the signed change log starting at fromRevision,
// in ascending revision order. The server may truncate the log; callers
// loop until caught up.
func (c *Client) GetGroupHistory(ctx context.Context, params zkgroup.GroupSecretParams, fromRevision uint32) ([]*groupproto.GroupChangeState, error) {
	auth, err := c.creds.AuthForToday(ctx, params)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/v2/groups/logs/%d", fromRevision)
	body, status, err := c.transport.Get(ctx, path, &auth)
	if err != nil {
		return nil, fmt.Errorf("groupapi: get group history: %w", err)
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}

	var changes groupproto.GroupChanges
	if err := changes.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("groupapi: unmarshal group history: %w", err)
	}
	c.logger.Debug("fetched group history",
		zap.Uint32("fromRevision", fromRevision),
		zap.Int("entries", len(changes.GroupChanges)))
	return changes.GroupChanges, nil
}

// PatchGroup submits a locally built action set. On success the server
// returns the signed change it committed.
func (c *Client) PatchGroup(ctx context.Context, params zkgroup.GroupSecretParams, actions *groupproto.GroupChangeActions) (*groupproto.GroupChange, error) {
	auth, err := c.creds.AuthForToday(ctx, params)
	if err != nil {
		return nil, err
	}

	body, status, err := c.transport.Patch(ctx, "/v2/groups/", actions.Marshal(), &auth)
	if err != nil {
		return nil, fmt.Errorf("groupapi: patch group: %w", err)
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}

	var change groupproto.GroupChange
	if err := change.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("groupapi: unmarshal signed change: %w", err)
	}
	return &change, nil
}

// checkStatus maps group endpoint status codes to the engine's error
// taxonomy.
func checkStatus(status int, body []byte) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusForbidden:
		return groupsv2.ErrNotAMember
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: group auth rejected (401)", groupsv2.ErrVerification)
	default:
		return fmt.Errorf("groupapi: status %d: %s", status, body)
	}
}
