package docs

// @title           Taxi Dispatch API
// @version         1.0
// @description     Ride matching core: ride lifecycle, three-wave driver discovery and fare offers. Supports WebSocket connections for live rider and driver updates.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token. Guest rides use the X-Guest-Token header instead.
