// Package docs provides generated OpenAPI documentation.
//
// Reel API
//
//	@title			Reel API
//	@version		1.0
//	@description	Storyboard generation: projects, stories, scenes and scene image generation.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/reel
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/reel/serve.go -o ./swagger --parseDependency --parseInternal
