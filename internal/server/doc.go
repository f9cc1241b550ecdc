// Package server implements a development firmware backend.
//
// It serves the same REST surface the client expects from a production
// deployment, rooted at a configurable base path (default "/api"):
//
//	POST   /auth/login                    JSON {email, password} -> {token, user}
//	GET    /firmware/firmwares-details    firmware list, newest first
//	POST   /firmware/upload               multipart: version, description, esp_id, file
//	GET    /firmware/download/:id         binary attachment
//	DELETE /firmware/delete/:id
//	GET    /firmware/events               websocket change feed
//	GET    /devices                       bearer token required
//	GET    /projects                      bearer token required
//
// Errors are JSON objects with a "message" field. Metadata is kept in
// sqlite through gorm and binaries are stored on disk under
// DataDir/firmware. Session tokens are HS256 JWTs.
//
// # Usage Example
//
//	config := server.DefaultConfig()
//	config.SeedPath = "seed.yaml"
//	config.Advertise = true
//
//	srv, err := server.New(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until SIGINT or SIGTERM, then shuts down gracefully.
package server
