package awsclient

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"rdscope/internal/logging"
)

// Options selects the credential profile and region for one discovery run.
// Empty values fall back to the standard AWS credential chain.
type Options struct {
	Region  string
	Profile string
}

// Clients bundles the service clients one discovery run needs. The database
// surface (RDS) and the network-security surface (EC2) are separate provider
// surfaces; STS is only used for the credential preflight.
type Clients struct {
	RDS *rds.Client
	EC2 *ec2.Client
	STS *sts.Client

	Region string
}

var (
	configCache = make(map[string]aws.Config)
	cacheMutex  sync.RWMutex
)

// New resolves an AWS config for the given options and constructs the
// service clients. Configs are cached per region+profile so repeated runs in
// one process reuse the credential resolution.
func New(ctx context.Context, opts Options) (*Clients, error) {
	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &Clients{
		RDS:    rds.NewFromConfig(cfg),
		EC2:    ec2.NewFromConfig(cfg),
		STS:    sts.NewFromConfig(cfg),
		Region: cfg.Region,
	}, nil
}

func loadConfig(ctx context.Context, opts Options) (aws.Config, error) {
	cacheKey := opts.Region + "|" + opts.Profile

	cacheMutex.RLock()
	if cfg, ok := configCache[cacheKey]; ok {
		cacheMutex.RUnlock()
		return cfg, nil
	}
	cacheMutex.RUnlock()

	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	if cfg, ok := configCache[cacheKey]; ok {
		return cfg, nil
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRetryMaxAttempts(5),
		config.WithRetryer(func() aws.Retryer {
			return retry.NewAdaptiveMode(func(o *retry.AdaptiveModeOptions) {
				o.StandardOptions = append(o.StandardOptions, func(so *retry.StandardOptions) {
					so.MaxBackoff = 30 * time.Second
				})
			})
		}),
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logging.LogDebug("Loaded AWS config", map[string]interface{}{
		"region":  cfg.Region,
		"profile": opts.Profile,
	})

	configCache[cacheKey] = cfg
	return cfg, nil
}

// AccountID returns the current AWS account ID. Used as a credential
// preflight so a bad profile fails before any discovery work starts.
func (c *Clients) AccountID(ctx context.Context) (string, error) {
	if accountID := os.Getenv("AWS_ACCOUNT_ID"); accountID != "" {
		return accountID, nil
	}

	result, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	if result == nil || result.Account == nil {
		return "", fmt.Errorf("empty account ID in response")
	}

	return aws.ToString(result.Account), nil
}
