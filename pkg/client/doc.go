// Package client is the Go client for a MockServer-compatible server.
//
// Expectations are built with When and completed by one of the ForwardChain
// action setters, which persist the expectation on the server:
//
//	c := client.New("localhost", 1080)
//	defer c.Stop()
//
//	err := c.When(expectation.Request().WithPath(negatable.New("/users"))).
//		RespondCallback(ctx, callback.ResponseFunc(
//			func(ctx context.Context, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error) {
//				return expectation.Response(200).WithBody("computed locally"), nil
//			}))
//
// Callback setters first register the callback over a dedicated callback
// channel and wait, bounded by MaxFutureTimeout, for the server to
// acknowledge it. Failures are reported as *DelegationError.
//
// Reset and Stop publish RESET and STOP on the client's lifecycle bus; every
// callback channel the client opened listens to both and tears itself down.
package client
