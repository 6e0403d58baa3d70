package user

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleClipper Role = "clipper"
)

// User is an entry of the profile directory. Budget admins and clippers share it.
type User struct {
	Id          int
	Uid         string
	DisplayName string
	Role        Role
}
