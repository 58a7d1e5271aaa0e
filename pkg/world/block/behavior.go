package block

// Behavior is type-specific interaction logic. Block records stay plain
// data; anything a block does when used lives here.
type Behavior interface {
	// Interact returns the type the cell becomes when used, and whether
	// the interaction applied at all.
	Interact(t Type) (Type, bool)
}

// Toggle swaps between two types, such as a closed and an open door.
type Toggle struct {
	A, B Type
}

func (tg Toggle) Interact(t Type) (Type, bool) {
	switch t {
	case tg.A:
		return tg.B, true
	case tg.B:
		return tg.A, true
	}
	return t, false
}

// Behaviors dispatches interactions by Type.
type Behaviors struct {
	byType map[Type]Behavior
}

// NewBehaviors returns an empty dispatch table.
func NewBehaviors() *Behaviors {
	return &Behaviors{byType: make(map[Type]Behavior)}
}

// DefaultBehaviors returns the dispatch table for the built-in blocks.
func DefaultBehaviors() *Behaviors {
	b := NewBehaviors()
	door := Toggle{A: DoorClosed, B: DoorOpen}
	b.Register(DoorClosed, door)
	b.Register(DoorOpen, door)
	return b
}

// Register binds bh to t. Must not be called once the table is shared.
func (b *Behaviors) Register(t Type, bh Behavior) {
	b.byType[t] = bh
}

// Interact runs the behaviour bound to t. Types without one are inert.
func (b *Behaviors) Interact(t Type) (Type, bool) {
	bh, ok := b.byType[t]
	if !ok {
		return t, false
	}
	return bh.Interact(t)
}
