package enums

// ActorRole is carried in access tokens.
type ActorRole string

const ActorRoleAdmin ActorRole = "admin"

func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the role can be minted into a token.
func (r ActorRole) IsValid() bool {
	return r == ActorRoleAdmin
}
