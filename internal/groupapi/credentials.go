package groupapi

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// temporalCredential is one day's auth credential.
type temporalCredential struct {
	Credential     []byte `json:"credential"`
	RedemptionTime int64  `json:"redemptionTime"` // seconds since epoch, start of day UTC
}

// credentialResponse is the response from /v1/certificate/auth/group.
type credentialResponse struct {
	Credentials []temporalCredential `json:"credentials"`
}

// CredentialProvider fetches and caches the 7-day group auth credential
// window. Credentials are account-scoped, not group-scoped: one provider
// serves every group. Safe for concurrent use.
type CredentialProvider struct {
	transport   *Transport
	accountAuth BasicAuth // account-level auth for the credential endpoint
	logger      *zap.Logger

	mu    sync.Mutex
	cache map[int64][]byte // redemption day start (unix seconds) → credential
}

// NewCredentialProvider creates a provider using the account auth pair.
// logger may be nil.
func NewCredentialProvider(transport *Transport, accountAuth BasicAuth, logger *zap.Logger) *CredentialProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialProvider{
		transport:   transport,
		accountAuth: accountAuth,
		logger:      logger,
		cache:       make(map[int64][]byte),
	}
}

// AuthForToday returns the basic-auth pair for group endpoints: username is
// the hex group public params, password the hex auth credential
// presentation for today's credential.
func (c *CredentialProvider) AuthForToday(ctx context.Context, params zkgroup.GroupSecretParams) (BasicAuth, error) {
	credential, err := c.credentialForDay(ctx, startOfDayUTC(time.Now()))
	if err != nil {
		return BasicAuth{}, err
	}
	public := params.GetPublicParams()
	return BasicAuth{
		Username: hex.EncodeToString(public[:]),
		Password: hex.EncodeToString(params.CreateAuthPresentation(credential)),
	}, nil
}

func (c *CredentialProvider) credentialForDay(ctx context.Context, day int64) ([]byte, error) {
	c.mu.Lock()
	cached, ok := c.cache[day]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	path := fmt.Sprintf("/v1/certificate/auth/group?redemptionStartSeconds=%d&redemptionEndSeconds=%d",
		day, day+7*24*60*60)

	var resp credentialResponse
	status, err := c.transport.GetJSON(ctx, path, &c.accountAuth, &resp)
	if err != nil {
		return nil, fmt.Errorf("groupapi: fetch auth credentials: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("groupapi: fetch auth credentials: status %d", status)
	}
	if len(resp.Credentials) == 0 {
		return nil, fmt.Errorf("groupapi: no credentials returned")
	}

	c.mu.Lock()
	for _, cred := range resp.Credentials {
		c.cache[cred.RedemptionTime] = cred.Credential
	}
	cached, ok = c.cache[day]
	c.mu.Unlock()

	if !ok {
		// A credential for the wrong redemption day would only earn a 401
		// from the server, so fail here where the cause is visible.
		return nil, fmt.Errorf("groupapi: credential window (%d entries) does not cover day %d", len(resp.Credentials), day)
	}
	c.logger.Debug("cached auth credential window",
		zap.Int("credentials", len(resp.Credentials)))
	return cached, nil
}

// startOfDayUTC truncates a time to the start of its UTC day, in unix
// seconds, matching the server's redemption time grid.
func startOfDayUTC(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}
