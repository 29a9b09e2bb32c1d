package domain

// Cedar entity vocabulary shared by every decision backend.
const (
	EntityTypeUser   = "Bookstore::User"
	EntityTypeRole   = "Bookstore::Role"
	EntityTypeBook   = "Bookstore::Book"
	EntityTypeAction = "Bookstore::Action"

	// AttrOwner is the book attribute naming the publishing user.
	AttrOwner = "owner"
)
