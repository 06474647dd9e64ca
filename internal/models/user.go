package models

// Usuario is the read-only projection of a user consumed by the fan-out
// path: contact data plus display name. The full user entity lives with the
// out-of-scope CRUD layer.
type Usuario struct {
	Login    string `json:"login"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Celular  string `json:"celular"`
	Mail     string `json:"mail"`
}

// NombreCompleto returns "Nombre Apellido" for notification enrichment.
func (u Usuario) NombreCompleto() string {
	if u.Nombre == "" {
		return u.Apellido
	}
	if u.Apellido == "" {
		return u.Nombre
	}
	return u.Nombre + " " + u.Apellido
}
