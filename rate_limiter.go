package rest

import "github.com/xompass/vsaas-camera-proxy/http_errors"

// checkRateLimit counts the request against the endpoint's window, keyed by
// endpoint name and client IP unless the limit supplies its own key.
func checkRateLimit(e *EndpointContext) error {
	if e.Endpoint.RateLimiter == nil || e.App.redisClient == nil {
		return nil
	}

	rateLimit := e.Endpoint.RateLimiter(e)
	if rateLimit.Max <= 0 {
		return nil
	}

	key := e.Endpoint.Name + "_" + e.IpAddress
	if rateLimit.Key != "" {
		key = rateLimit.Key
	}

	ctx := e.Context()
	pipe := e.App.redisClient.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	expireCmd := pipe.ExpireNX(ctx, key, rateLimit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	count, err := incrCmd.Result()
	if err != nil {
		return err
	}

	if _, err = expireCmd.Result(); err != nil {
		return err
	}

	if count > int64(rateLimit.Max) {
		e.App.Warnf("Rate limit exceeded for %s: %d requests", key, count)
		return http_errors.TooManyRequestsError("Too many requests")
	}

	return nil
}
