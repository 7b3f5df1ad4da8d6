package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by every HTTP surface mounted on the portal router.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}
