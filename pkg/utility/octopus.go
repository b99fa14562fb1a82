package utility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/tousync/pkg/common"
	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/types"
)

const (
	// krakenTokenTTL is how long a token is reused. Kraken tokens are valid
	// for an hour.
	krakenTokenTTL = 55 * time.Minute

	errorCodeTokenExpired = "KT-CT-1124"
)

const obtainTokenMutation = `mutation krakenTokenAuthentication($apiKey: String!) {
  obtainKrakenToken(input: {APIKey: $apiKey}) {
    token
  }
}`

// the aliases keep the field names the dispatch snapshots have always used
const dispatchesQuery = `query getDispatches($accountNumber: String!) {
  plannedDispatches(accountNumber: $accountNumber) {
    startDtUtc: startDt
    endDtUtc: endDt
    chargeKwh: delta
    meta {
      source
      location
    }
  }
  completedDispatches(accountNumber: $accountNumber) {
    startDtUtc: startDt
    endDtUtc: endDt
    chargeKwh: delta
    meta {
      source
      location
    }
  }
}`

const agreementQuery = `query getAgreement($accountNumber: String!) {
  account(accountNumber: $accountNumber) {
    electricityAgreements(active: true) {
      validFrom
      validTo
      tariff {
        ... on TariffType {
          tariffCode
          fullName
          displayName
          productCode
        }
        ... on HalfHourlyTariff {
          unitRates {
            value
            validFrom
            validTo
          }
        }
      }
    }
  }
}`

var errNoToken = errors.New("no kraken token returned")

// Octopus implements Provider with the Octopus Energy Kraken GraphQL API.
type Octopus struct {
	apiURL  string
	apiKey  string
	account string
	client  *http.Client
	now     func() time.Time

	mu      sync.Mutex
	token   string
	tokenAt time.Time
}

// configuredOctopus sets up flags for Octopus and returns the instance.
func configuredOctopus() *Octopus {
	o := &Octopus{
		client: common.HTTPClient(30 * time.Second),
		now:    time.Now,
	}
	apiURL := lflag.String("octopus-api-url", "https://api.octopus.energy/v1/graphql/", "URL for the Octopus Kraken GraphQL API")
	apiKey := lflag.String("octopus-api-key", "", "API key for the Octopus account")
	account := lflag.String("octopus-account", "", "Octopus account number, like A-1234ABCD")

	lflag.Do(func() {
		o.apiURL = *apiURL
		o.apiKey = *apiKey
		o.account = *account
	})

	return o
}

// Validate ensures the configuration is valid.
func (o *Octopus) Validate() error {
	if o.apiURL == "" {
		return fmt.Errorf("octopus-api-url is required")
	}
	if _, err := url.Parse(o.apiURL); err != nil {
		return fmt.Errorf("failed to parse octopus url (%s): %w", o.apiURL, err)
	}
	if o.apiKey == "" {
		return fmt.Errorf("octopus-api-key is required")
	}
	if o.account == "" {
		return fmt.Errorf("octopus-account is required")
	}
	return nil
}

// authToken returns a cached token or obtains a new one.
func (o *Octopus) authToken(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if o.token != "" && now.Sub(o.tokenAt) < krakenTokenTTL {
		return o.token, nil
	}

	var data struct {
		ObtainKrakenToken struct {
			Token string `json:"token"`
		} `json:"obtainKrakenToken"`
	}
	err := graphQL(ctx, o.client, o.apiURL, "", graphQLRequest{
		OperationName: "krakenTokenAuthentication",
		Query:         obtainTokenMutation,
		Variables:     map[string]any{"apiKey": o.apiKey},
	}, &data)
	if err != nil {
		return "", fmt.Errorf("failed to obtain kraken token: %w", err)
	}
	if data.ObtainKrakenToken.Token == "" {
		return "", errNoToken
	}
	log.Ctx(ctx).DebugContext(ctx, "obtained kraken token")
	o.token = data.ObtainKrakenToken.Token
	o.tokenAt = now
	return o.token, nil
}

func (o *Octopus) forgetToken(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token == token {
		o.token = ""
	}
}

// query runs an authenticated operation, re-authenticating once if the
// token has expired.
func (o *Octopus) query(ctx context.Context, req graphQLRequest, out any) error {
	for attempt := 0; ; attempt++ {
		token, err := o.authToken(ctx)
		if err != nil {
			return err
		}
		err = graphQL(ctx, o.client, o.apiURL, token, req, out)
		var gqlErrs graphQLErrors
		if attempt == 0 && errors.As(err, &gqlErrs) && gqlErrs.has(errorCodeTokenExpired) {
			log.Ctx(ctx).InfoContext(ctx, "kraken token expired, re-authenticating")
			o.forgetToken(token)
			continue
		}
		return err
	}
}

// Dispatches implements Provider.
func (o *Octopus) Dispatches(ctx context.Context) (types.Dispatches, error) {
	var data types.Dispatches
	err := o.query(ctx, graphQLRequest{
		OperationName: "getDispatches",
		Query:         dispatchesQuery,
		Variables:     map[string]any{"accountNumber": o.account},
	}, &data)
	if err != nil {
		return types.Dispatches{}, fmt.Errorf("failed to get dispatches: %w", err)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"got octopus dispatches",
		slog.Int("planned", len(data.Planned)),
		slog.Int("completed", len(data.Completed)),
	)
	return data, nil
}

type octopusAgreement struct {
	ValidFrom string  `json:"validFrom"`
	ValidTo   *string `json:"validTo"`
	Tariff    struct {
		TariffCode  string             `json:"tariffCode"`
		FullName    string             `json:"fullName"`
		DisplayName string             `json:"displayName"`
		ProductCode string             `json:"productCode"`
		UnitRates   []types.RateRecord `json:"unitRates"`
	} `json:"tariff"`
}

// Agreement implements Provider. Exactly one agreement must be active.
func (o *Octopus) Agreement(ctx context.Context) (types.Agreement, error) {
	var data struct {
		Account struct {
			ElectricityAgreements []octopusAgreement `json:"electricityAgreements"`
		} `json:"account"`
	}
	err := o.query(ctx, graphQLRequest{
		OperationName: "getAgreement",
		Query:         agreementQuery,
		Variables:     map[string]any{"accountNumber": o.account},
	}, &data)
	if err != nil {
		return types.Agreement{}, fmt.Errorf("failed to get agreement: %w", err)
	}

	agreements := data.Account.ElectricityAgreements
	if len(agreements) != 1 {
		codes := make([]string, len(agreements))
		for i, a := range agreements {
			codes[i] = a.Tariff.TariffCode
		}
		return types.Agreement{}, fmt.Errorf("expected one active agreement, found %d: %v", len(agreements), codes)
	}
	a := agreements[0]
	validFrom, err := types.ParseInstant(a.ValidFrom)
	if err != nil {
		return types.Agreement{}, fmt.Errorf("invalid agreement: %w", err)
	}
	if len(a.Tariff.UnitRates) == 0 {
		return types.Agreement{}, fmt.Errorf("tariff %s has no half hourly unit rates", a.Tariff.TariffCode)
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"got octopus agreement",
		slog.String("tariffCode", a.Tariff.TariffCode),
		slog.Int("unitRates", len(a.Tariff.UnitRates)),
	)
	return types.Agreement{
		TariffCode:  a.Tariff.TariffCode,
		FullName:    a.Tariff.FullName,
		DisplayName: a.Tariff.DisplayName,
		ProductCode: a.Tariff.ProductCode,
		ValidFrom:   validFrom,
		UnitRates:   a.Tariff.UnitRates,
	}, nil
}
