package ldap

import (
	"context"
	"fmt"
	"io"

	goldap "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"cds-ils/pkg/config"
)

// Searcher is the part of *goldap.Conn the client needs.
type Searcher interface {
	Search(searchRequest *goldap.SearchRequest) (*goldap.SearchResult, error)
}

// AccountSource is what the synchronization job reads accounts from.
type AccountSource interface {
	GetPrimaryAccounts(ctx context.Context) ([]Entry, error)
}

type Client struct {
	conn   Searcher
	closer io.Closer
	cfg    *config.LDAPConfig
	logger *zap.Logger
}

func NewClient(conn Searcher, cfg *config.LDAPConfig, logger *zap.Logger) *Client {
	c := &Client{conn: conn, cfg: cfg, logger: logger.Named("ldap_client")}
	if closer, ok := conn.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// Dial connects to cfg.URL and binds when a bind DN is configured.
// Anonymous access is enough for the public directory.
func Dial(cfg *config.LDAPConfig, logger *zap.Logger) (*Client, error) {
	l, err := goldap.DialURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server %s: %w", cfg.URL, err)
	}

	if cfg.BindDN != "" {
		if err := l.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to bind as %s: %w", cfg.BindDN, err)
		}
	}

	return NewClient(l, cfg, logger), nil
}

// Dialer opens a fresh account source for one synchronization run.
type Dialer func() (AccountSource, error)

// NewDialer returns a Dialer connecting with cfg.
func NewDialer(cfg *config.LDAPConfig, logger *zap.Logger) Dialer {
	return func() (AccountSource, error) {
		client, err := Dial(cfg, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// GetPrimaryAccounts returns every entry matching the configured filter, following
// the RFC 2696 paging cookie until the server returns an empty one. Errors are not retried.
func (c *Client) GetPrimaryAccounts(ctx context.Context) ([]Entry, error) {
	paging := goldap.NewControlPaging(c.cfg.PageSize)

	var (
		result []Entry
		pages  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		searchRequest := goldap.NewSearchRequest(
			c.cfg.BaseDN,
			goldap.ScopeSingleLevel, goldap.NeverDerefAliases, 0, 0, false,
			c.cfg.Filter,
			c.cfg.Attributes,
			[]goldap.Control{paging},
		)

		sr, err := c.conn.Search(searchRequest)
		if err != nil {
			return nil, fmt.Errorf("ldap search failed on page %d: %w", pages+1, err)
		}
		pages++

		for _, e := range sr.Entries {
			result = append(result, EntryFromLDAP(e))
		}

		ctrl := goldap.FindControl(sr.Controls, goldap.ControlTypePaging)
		if ctrl == nil {
			c.logger.Warn("the server ignores RFC 2696 control")
			break
		}
		pagingResp, ok := ctrl.(*goldap.ControlPaging)
		if !ok || len(pagingResp.Cookie) == 0 {
			break
		}
		paging.SetCookie(pagingResp.Cookie)
	}

	c.logger.Debug("primary accounts fetched", zap.Int("entries", len(result)), zap.Int("pages", pages))
	return result, nil
}
