package unitofwork

// EntityState is the state of one entity relative to one Unit of Work.
type EntityState int

const (
	// Unattached means the entity was never attached to the Unit of Work.
	Unattached EntityState = iota

	// Clean means the entity is attached and nothing would be persisted on flush.
	Clean

	// Dirty means the entity is attached and at least one field would be persisted on flush, or it is scheduled for removal.
	Dirty

	// Detached means the entity was attached to the Unit of Work and no longer is. It is terminal for this pairing.
	Detached
)

// String provides a string representation of EntityState for logging and debugging.
func (s EntityState) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}
