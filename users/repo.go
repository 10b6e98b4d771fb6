package users

type UserRepo interface {
	Upsert(user *User) error
	Delete(id int64) error
	GetByUsername(username string) (*User, error)
	GetByID(id int64) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetBlocked(id int64, blocked bool) error
}
