package log

import "testing"

func TestDirectionString(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{DirectionIn, "IN"},
		{DirectionOut, "OUT"},
		{Direction(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.dir.String(); got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestLayerString(t *testing.T) {
	tests := []struct {
		layer Layer
		want  string
	}{
		{LayerTransport, "TRANSPORT"},
		{LayerChannel, "CHANNEL"},
		{LayerService, "SERVICE"},
		{Layer(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.layer.String(); got != tt.want {
			t.Errorf("Layer(%d).String() = %q, want %q", tt.layer, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryChannel, "CHANNEL"},
		{CategorySubscription, "SUBSCRIPTION"},
		{CategoryNotification, "NOTIFICATION"},
		{CategoryState, "STATE"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.cat.String(); got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestRoleString(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleServer, "SERVER"},
		{RoleClient, "CLIENT"},
		{Role(0), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.role.String(); got != tt.want {
			t.Errorf("Role(%d).String() = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestChannelActionString(t *testing.T) {
	tests := []struct {
		action ChannelAction
		want   string
	}{
		{ChannelCreated, "CREATED"},
		{ChannelClosed, "CLOSED"},
		{ChannelExpired, "EXPIRED"},
		{ChannelInvalidated, "INVALIDATED"},
		{ChannelAction(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("ChannelAction(%d).String() = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestSubscriptionActionString(t *testing.T) {
	tests := []struct {
		action SubscriptionAction
		want   string
	}{
		{SubscriptionRegistered, "REGISTERED"},
		{SubscriptionUnregistered, "UNREGISTERED"},
		{SubscriptionFailed, "FAILED"},
		{SubscriptionLost, "LOST"},
		{SubscriptionAction(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("SubscriptionAction(%d).String() = %q, want %q", tt.action, got, tt.want)
		}
	}
}

// Wire values are persisted in capture files and must not change.
func TestEnumValues(t *testing.T) {
	tests := []struct {
		name string
		got  uint8
		want uint8
	}{
		{"DirectionIn", uint8(DirectionIn), 0},
		{"DirectionOut", uint8(DirectionOut), 1},
		{"LayerTransport", uint8(LayerTransport), 0},
		{"LayerChannel", uint8(LayerChannel), 1},
		{"LayerService", uint8(LayerService), 2},
		{"CategoryChannel", uint8(CategoryChannel), 0},
		{"CategorySubscription", uint8(CategorySubscription), 1},
		{"CategoryNotification", uint8(CategoryNotification), 2},
		{"CategoryState", uint8(CategoryState), 3},
		{"CategoryError", uint8(CategoryError), 4},
		{"RoleServer", uint8(RoleServer), 1},
		{"RoleClient", uint8(RoleClient), 2},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}
