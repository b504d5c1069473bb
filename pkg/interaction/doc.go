// Package interaction implements the Woopsa verbs.
//
// Woopsa defines four verbs between a client and a server:
//
//   - read: get the value of a property
//   - write: set the value of a property
//   - invoke: call a method with named arguments
//   - meta: describe an object
//
// # Server Usage
//
// The Server executes verbs against a model.Object tree and forwards
// requests that cross a model.Remote mount:
//
//	root := model.NewObject("Root")
//	server := interaction.NewServer(root)
//	_ = server.InstallMultiRequest()
//
//	// From a transport handler
//	body, err := server.Serve(ctx, wire.ActionRead, "/Votes", nil)
//
// # Client Usage
//
// The Client issues verbs through a Transport and decodes the JSON answers:
//
//	client := interaction.NewClient(transport)
//	v, err := client.Read(ctx, "/Votes")
//	err = client.Write(ctx, "/Votes", value.Integer(3))
//	res, err := client.Invoke(ctx, "/Reset", nil)
//
// Loopback is a Transport that reaches a Server in the same process.
//
// # Batching
//
// A Batch queues calls and sends them as a single MultiRequest invocation:
//
//	b := interaction.NewBatch(client)
//	votes := b.Read("/Votes")
//	reset := b.Invoke("/Reset", nil)
//	if err := b.Send(ctx); err != nil {
//	    // transport failure
//	}
//	v, err := votes.Value()
//
// Peers without a MultiRequest method are detected on first use and then
// served one request at a time.
package interaction
