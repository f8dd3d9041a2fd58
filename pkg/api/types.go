package api

// LocalAddressResponse answers /resolve/local-address. Interface is empty
// for the reserved all and localhost networks.
type LocalAddressResponse struct {
	Interface string `json:"interface,omitempty"`
	Address   string `json:"address"`
}

// AccessIPResponse answers /resolve/access-ip.
type AccessIPResponse struct {
	Address string `json:"address"`
}

// TokenResponse carries a signed operator token.
type TokenResponse struct {
	Token string `json:"token"`
}
