// Package client implements the RPC client of the binding service.
//
// NewRPCBindingClient returns a BindingClient, an implementation of binding.IService
// that sends every call to one shard of the remote servers. Domain results come back
// as binding.Result values. Errors the server reports keep their class across the
// wire: a lost concurrent write satisfies errors.Is(err, binding.ErrConflict) and a
// missing argument errors.Is(err, binding.ErrInvalidArgument).
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"http://localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	  ShardID:       100,
//	}
//
//	c, err := client.NewRPCBindingClient(config, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	result, err := c.New("alice@example.org", "gcm-registration-id")
//
// Thread Safety:
//
//	The client is safe for concurrent use if its transport is.
package client
