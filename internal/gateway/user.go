package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/observability"
)

const userDependency = "user_service"

// UserSummary is the identity data other services need for display.
type UserSummary struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// DisplayName joins first and last name.
func (u UserSummary) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return FallbackUserSummary(u.ID).DisplayName()
	}
	return name
}

// FallbackUserSummary is the placeholder used when the user service cannot answer.
func FallbackUserSummary(userID uint) UserSummary {
	return UserSummary{
		ID:        userID,
		FirstName: "Student",
		LastName:  fmt.Sprintf("#%d", userID),
	}
}

// UserClient is the raw transport to the user identity service.
type UserClient interface {
	UserSummary(ctx context.Context, userID uint) (UserSummary, error)
}

type userEnvelope struct {
	Success bool        `json:"success"`
	Data    UserSummary `json:"data"`
	Message string      `json:"message"`
}

type httpUserClient struct {
	rest *restClient
}

// NewHTTPUserClient talks to the user service's internal endpoint.
func NewHTTPUserClient(baseURL, serviceName string, timeout time.Duration) UserClient {
	return &httpUserClient{rest: newRestClient(userDependency, baseURL, serviceName, timeout)}
}

func (c *httpUserClient) UserSummary(ctx context.Context, userID uint) (UserSummary, error) {
	var envelope userEnvelope
	if err := c.rest.getJSON(ctx, fmt.Sprintf("/internal/users/%d", userID), &envelope); err != nil {
		return UserSummary{}, err
	}
	if envelope.Data.ID == 0 {
		envelope.Data.ID = userID
	}
	return envelope.Data, nil
}

// UserGateway resolves display identities. It never returns an error.
type UserGateway struct {
	client UserClient
	remote *remote
	logger zerolog.Logger
}

// NewUserGateway wires client behind breaker and retry.
func NewUserGateway(client UserClient, breaker *Breaker, retry RetryPolicy, logger zerolog.Logger) *UserGateway {
	log := logger.With().Str("component", "user_gateway").Logger()
	return &UserGateway{
		client: client,
		remote: newRemote(userDependency, breaker, retry, log),
		logger: log,
	}
}

// UserSummary returns the user's identity or a placeholder.
func (g *UserGateway) UserSummary(ctx context.Context, userID uint) UserSummary {
	var summary UserSummary
	err := g.remote.do(ctx, "user_summary", func(ctx context.Context) error {
		var err error
		summary, err = g.client.UserSummary(ctx, userID)
		return err
	})
	if err != nil {
		g.logger.Warn().Err(err).Uint("user_id", userID).Msg("user lookup failed, using placeholder")
		observability.GatewayFallbacks().WithLabelValues(userDependency, "user_summary").Inc()
		return FallbackUserSummary(userID)
	}
	return summary
}
