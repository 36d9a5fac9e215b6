package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/realtime-chat/modules/api"
	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Realtime Chat - Rooms over WebSocket ===")

	_ = godotenv.Load(".env")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	authModule := auth.NewModule()
	broadcastModule := broadcast.NewModule()
	chatModule := chat.NewModule(app.Logger())
	apiModule := api.NewModule(app.Logger())

	// The coordinator and the chat services are shared in-process objects,
	// not request-reply services, so they are injected here.
	chatModule.SetCoordinator(broadcastModule.Coordinator())
	apiModule.SetChat(chatModule)
	apiModule.SetDeliveryStats(broadcastModule.Coordinator())

	// - auth: users, tokens, credential resolution (ServiceProviderModule)
	// - broadcast: room fan-out + lobby notices (EventConsumerModule)
	// - chat: store, room registry, connection multiplexer (EventEmitterModule)
	// - api: Fiber HTTP + WebSocket transport
	app.Register(authModule)
	app.Register(broadcastModule)
	app.Register(chatModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                     - Health check")
	log.Println("  GET    /metrics                    - Prometheus metrics")
	log.Println("  POST   /api/v1/auth/register       - Register a user")
	log.Println("  POST   /api/v1/auth/login          - Login, returns token pair")
	log.Println("  POST   /api/v1/auth/refresh        - Refresh token pair")
	log.Println("  GET    /api/v1/rooms               - List rooms")
	log.Println("  POST   /api/v1/rooms               - Create a room")
	log.Println("  GET    /api/v1/rooms/:id           - Get room details")
	log.Println("  DELETE /api/v1/rooms/:id           - Delete a room (members only)")
	log.Println("  GET    /api/v1/rooms/:id/history   - Message history (?limit=&order=asc|desc)")
	log.Println("  GET    /api/v1/rooms/:id/members   - Durable members with presence")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Printf("  Connect with: ws://localhost:%s/ws?token=<access_token>", port)
	log.Println("  Event types: join, leave, message, history, members, rooms")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
