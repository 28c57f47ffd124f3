/*
Package resilience provides a circuit breaker for calls to the Orchard API.

When the API keeps failing the breaker opens and requests fail fast with
ErrCircuitOpen instead of waiting out their timeouts and retries. After
Timeout one trial request is let through (half-open); enough successes
close the circuit again.

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

# Usage

	breaker := resilience.New("orchard-api", resilience.Settings{
		Timeout: 30 * time.Second,
		IsFailure: func(err error) bool {
			var status *api.StatusError
			if errors.As(err, &status) {
				return status.Status >= 500
			}
			return err != nil
		},
	})

	err := breaker.Execute(func() error {
		return client.Do(req)
	})
*/
package resilience
