package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openteller/depot/internal/common/database"
	"github.com/openteller/depot/internal/common/depoterrors"
	"github.com/openteller/depot/internal/depot/claim"
	"github.com/openteller/depot/internal/depot/configuration"
	"github.com/openteller/depot/internal/depot/ratelimit"
	"github.com/openteller/depot/internal/depot/schema"
)

func init() {
	rootCmd.AddCommand(claimCmd)
	claimCmd.Flags().StringArray(
		"filter", nil, "column=value filter; repeatable, all filters must match")
	claimCmd.Flags().Bool(
		"peek", false, "return the record without marking it used")
	claimCmd.Flags().String(
		"identity", "cli", "caller identity used for rate limiting")
}

var claimCmd = &cobra.Command{
	Use:   "claim dataset",
	Short: "Dispenses one unclaimed record matching the supplied filters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := loadConfiguration()

		identity, _ := cmd.Flags().GetString("identity")
		limiter := newLimiter(config.RateLimit)
		result, err := limiter.Check(identity, config.RateLimit.Limit, config.RateLimit.Window)
		if err != nil {
			return err
		}
		if !result.Allowed {
			return &depoterrors.ErrRateLimited{RetryAfterSeconds: result.RetryAfter}
		}

		filterArgs, _ := cmd.Flags().GetStringArray("filter")
		filters, err := parseFilters(filterArgs)
		if err != nil {
			return err
		}

		goquDb, err := database.OpenGoquDb(config.Postgres)
		if err != nil {
			return err
		}

		peek, _ := cmd.Flags().GetBool("peek")
		engine := claim.NewEngine(goquDb, schema.Default())
		record, err := engine.FindAndClaim(cmd.Context(), args[0], filters, !peek)
		if depoterrors.IsNotFound(err) {
			log.Info("no matching record")
			return nil
		}
		if err != nil {
			return err
		}

		payload, err := json.MarshalIndent(map[string]interface{}{
			"values":    record.Values,
			"used":      record.Used,
			"timesUsed": record.TimesUsed,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	},
}

func parseFilters(args []string) (map[string]interface{}, error) {
	filters := make(map[string]interface{}, len(args))
	for _, arg := range args {
		column, value, found := strings.Cut(arg, "=")
		if !found || column == "" {
			return nil, errors.Errorf("invalid filter %q, expected column=value", arg)
		}
		if column == "used" {
			used, err := strconv.ParseBool(value)
			if err != nil {
				return nil, errors.Errorf("invalid filter %q, used must be a boolean", arg)
			}
			filters[column] = used
			continue
		}
		filters[column] = value
	}
	return filters, nil
}

func newLimiter(config configuration.RateLimitConfig) ratelimit.Limiter {
	if config.Backend == "redis" {
		return ratelimit.NewRedisLimiter(redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{config.Redis.Addr},
			Password: config.Redis.Password,
			DB:       config.Redis.Db,
		}))
	}
	return ratelimit.NewFixedWindowLimiter()
}
