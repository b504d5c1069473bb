package interaction

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

func createTestRoot(t *testing.T) *model.Object {
	t.Helper()

	root := model.NewObject("Root")
	mustAdd(t, root.AddProperty(model.NewProperty(&model.PropertyMetadata{
		Name: "Votes",
		Type: value.TypeInteger,
	})))
	mustAdd(t, root.AddProperty(model.NewProperty(&model.PropertyMetadata{
		Name:     "Serial",
		Type:     value.TypeText,
		ReadOnly: true,
		Default:  value.Text("W-001"),
	})))
	mustAdd(t, root.AddMethod(model.NewMethod(&model.MethodMetadata{
		Name:       "Double",
		ReturnType: value.TypeInteger,
		Arguments:  []model.ArgumentMetadata{{Name: "X", Type: value.TypeInteger}},
	}, func(_ context.Context, args map[string]value.Value) (value.Value, error) {
		x, _ := args["X"].AsInt()
		return value.Integer(2 * x), nil
	})))
	return root
}

func mustAdd(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
}

func newLoopbackClient(t *testing.T, multi bool) (*Server, *Client) {
	t.Helper()
	server := NewServer(createTestRoot(t))
	if multi {
		if err := server.InstallMultiRequest(); err != nil {
			t.Fatalf("InstallMultiRequest failed: %v", err)
		}
	}
	return server, NewClient(NewLoopback(server))
}

func TestClientReadWrite(t *testing.T) {
	_, client := newLoopbackClient(t, false)
	ctx := context.Background()

	if err := client.Write(ctx, "/Votes", value.Integer(4)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	v, err := client.Read(ctx, "/Votes")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !v.Equal(value.Integer(4)) {
		t.Errorf("Read() = %v, want Integer(4)", v)
	}

	err = client.Write(ctx, "/Serial", value.Text("x"))
	if !errors.Is(err, wire.ErrReadOnly) {
		t.Errorf("Write(Serial) error = %v, want ErrReadOnly", err)
	}

	_, err = client.Read(ctx, "/Missing")
	if !errors.Is(err, wire.ErrNotFound) {
		t.Errorf("Read(Missing) error = %v, want ErrNotFound", err)
	}
}

func TestClientInvoke(t *testing.T) {
	_, client := newLoopbackClient(t, false)

	got, err := client.Invoke(context.Background(), "/Double", map[string]value.Value{"X": value.Integer(21)})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !got.Equal(value.Integer(42)) {
		t.Errorf("Invoke() = %v, want Integer(42)", got)
	}

	_, err = client.Invoke(context.Background(), "/Double", nil)
	if !errors.Is(err, wire.ErrInvalidArgument) {
		t.Errorf("Invoke() without args error = %v, want ErrInvalidArgument", err)
	}
}

func TestClientMeta(t *testing.T) {
	_, client := newLoopbackClient(t, true)

	m, err := client.Meta(context.Background(), "/")
	if err != nil {
		t.Fatalf("Meta failed: %v", err)
	}
	if _, ok := m.Property("Votes"); !ok {
		t.Error("Meta() has no Votes property")
	}
	if _, ok := m.Method("MultiRequest"); !ok {
		t.Error("Meta() has no MultiRequest method")
	}

	_, err = client.Meta(context.Background(), "/Votes")
	if !errors.Is(err, wire.ErrNotFound) {
		t.Errorf("Meta(Votes) error = %v, want ErrNotFound", err)
	}
}

func TestServeWriteRequiresValue(t *testing.T) {
	server := NewServer(createTestRoot(t))

	body, err := server.Serve(context.Background(), wire.ActionWrite, "/Votes", url.Values{})
	if !errors.Is(err, wire.ErrInvalidArgument) {
		t.Fatalf("Serve() error = %v, want ErrInvalidArgument", err)
	}
	if e, ok := wire.DecodeError(body); !ok || e.Type != wire.TypeInvalidArgument {
		t.Errorf("body = %s, want error body", body)
	}
}

func TestBatch(t *testing.T) {
	for _, multi := range []bool{true, false} {
		name := "Sequential"
		if multi {
			name = "MultiRequest"
		}
		t.Run(name, func(t *testing.T) {
			_, client := newLoopbackClient(t, multi)

			b := NewBatch(client)
			write := b.Write("/Votes", value.Integer(7))
			read := b.Read("/Votes")
			double := b.Invoke("/Double", map[string]value.Value{"X": value.Integer(3)})
			missing := b.Read("/Missing")

			if b.Len() != 4 {
				t.Fatalf("Len() = %d, want 4", b.Len())
			}
			if err := b.Send(context.Background()); err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if b.Len() != 0 {
				t.Errorf("Len() after Send = %d, want 0", b.Len())
			}

			if err := write.Err(); err != nil {
				t.Errorf("write error = %v", err)
			}
			if v, err := read.Value(); err != nil || !v.Equal(value.Integer(7)) {
				t.Errorf("read = %v, %v; want Integer(7)", v, err)
			}
			if v, err := double.Value(); err != nil || !v.Equal(value.Integer(6)) {
				t.Errorf("double = %v, %v; want Integer(6)", v, err)
			}
			if err := missing.Err(); !errors.Is(err, wire.ErrNotFound) {
				t.Errorf("missing error = %v, want ErrNotFound", err)
			}

			if client.noMulti.Load() == multi {
				t.Errorf("noMulti = %v with MultiRequest installed = %v", client.noMulti.Load(), multi)
			}
		})
	}
}

type failingTransport struct {
	calls int
}

func (f *failingTransport) RoundTrip(context.Context, wire.Action, string, url.Values) ([]byte, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestBatchTransportFailure(t *testing.T) {
	transport := &failingTransport{}
	client := NewClient(transport)

	b := NewBatch(client)
	call := b.Read("/Votes")
	if err := b.Send(context.Background()); err == nil {
		t.Fatal("Send() succeeded over a failing transport")
	}
	if call.Done() {
		t.Error("Done() = true after failed send")
	}
	if transport.calls != 1 {
		t.Errorf("transport called %d times, want 1", transport.calls)
	}
	if client.noMulti.Load() {
		t.Error("transport failure disabled MultiRequest")
	}
}

func TestRemoteMountForwarding(t *testing.T) {
	nested := NewServer(createTestRoot(t))
	nestedClient := NewClient(NewLoopback(nested))

	root := model.NewObject("Root")
	if _, err := root.Mount("Nested", nestedClient); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	server := NewServer(root)
	if err := server.InstallMultiRequest(); err != nil {
		t.Fatalf("InstallMultiRequest failed: %v", err)
	}
	client := NewClient(NewLoopback(server))
	ctx := context.Background()

	if err := client.Write(ctx, "/Nested/Votes", value.Integer(9)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	v, err := nested.Read(ctx, "/Votes")
	if err != nil || !v.Equal(value.Integer(9)) {
		t.Errorf("nested Votes = %v, %v; want Integer(9)", v, err)
	}

	got, err := client.Invoke(ctx, "/Nested/Double", map[string]value.Value{"X": value.Integer(5)})
	if err != nil || !got.Equal(value.Integer(10)) {
		t.Errorf("Invoke() = %v, %v; want Integer(10)", got, err)
	}

	m, err := client.Meta(ctx, "/Nested")
	if err != nil {
		t.Fatalf("Meta failed: %v", err)
	}
	if m.Name != "Nested" {
		t.Errorf("Meta().Name = %q, want Nested", m.Name)
	}

	_, err = client.Read(ctx, "/Nested/Missing")
	if !errors.Is(err, wire.ErrNotFound) {
		t.Errorf("Read(Nested/Missing) error = %v, want ErrNotFound", err)
	}
}

func TestAsPeer(t *testing.T) {
	server := NewServer(createTestRoot(t))
	if _, ok := AsPeer(server).(*Server); !ok {
		t.Error("AsPeer(Server) wrapped a batch-capable peer")
	}

	peer := AsPeer(remoteOnly{server})
	b := NewBatch(peer)
	call := b.Read("/Serial")
	if err := b.Send(context.Background()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if v, err := call.Value(); err != nil || v.Text() != "W-001" {
		t.Errorf("Value() = %v, %v; want W-001", v, err)
	}
}

// remoteOnly hides the Multi method of a Server.
type remoteOnly struct {
	model.RemoteClient
}

func TestClientClosed(t *testing.T) {
	_, client := newLoopbackClient(t, false)
	_ = client.Close()

	if _, err := client.Read(context.Background(), "/Votes"); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Read() error = %v, want ErrClientClosed", err)
	}
}
