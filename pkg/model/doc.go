// Package model implements the Woopsa object hierarchy.
//
// # Hierarchy
//
// A server exposes a tree of Objects. Each Object holds named children
// (items), Properties and Methods:
//
//	Root
//	├── Votes             (Property, Integer)
//	├── Temperature       (Property, Real, read-only)
//	├── Reset()           (Method)
//	├── SubscriptionService
//	│   ├── CreateSubscriptionChannel(NotificationQueueSize)
//	│   └── ...
//	└── Plant             (Remote mount)
//	    └── ...           (lives on another server)
//
// # Addressing
//
// Everything is addressed by a slash separated path from the root, e.g.
// "/SubscriptionService/WaitNotification". Resolve walks a path and reports
// what it found. When the walk reaches a Remote mount the remaining path is
// returned unresolved together with the mount, and callers forward the
// request to the mount's RemoteClient.
//
// # Properties
//
// A Property either stores its value or computes it through a getter.
// Stored properties push changes to watchers registered with Watch whenever
// a write changes the value. Computed properties cannot push and must be
// sampled.
//
// # Errors
//
// Lookup and access failures wrap the protocol sentinels of package wire
// (wire.ErrNotFound, wire.ErrReadOnly, wire.ErrInvalidArgument) so they map
// directly onto error bodies on the wire.
package model
