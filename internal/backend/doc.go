// Package backend is the REST client for the firmware backend.
//
// Every method takes a context and returns *APIError on failure, so callers
// can branch with IsAuthError, IsNetworkError and friends and show
// ShortMessage or TroubleshootingHint to the user. Only the list calls are
// retried, and only when MaxRetries is raised above its default of 0.
//
// Endpoints:
//
//	GET    /firmware/firmwares-details   ListFirmwares
//	GET    /devices                      ListDevices   (bearer)
//	GET    /projects                     ListProjects  (bearer)
//	POST   /firmware/upload              Upload        (multipart)
//	GET    /firmware/download/{id}       Download
//	DELETE /firmware/delete/{id}         Delete
//	POST   /auth/login                   Login
//	GET    /firmware/events              Watch         (websocket)
package backend
