package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"email-gate/internal/app"
	"email-gate/internal/bot"
	"email-gate/internal/config"
)

// cli_bot alimenta el dispatcher con líneas de stdin como si fueran DMs.
func main() {
	userID := flag.String("user", "", "identity id to send commands as")
	username := flag.String("name", "operator", "display name of the identity")
	discriminator := flag.String("disc", "0000", "discriminator of the identity")
	welcome := flag.Bool("welcome", false, "send the welcome DM to -user and exit")
	flag.Parse()

	if strings.TrimSpace(*userID) == "" {
		log.Fatal("-user is required")
	}

	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if *welcome {
		if err := a.Dispatcher.Welcome(ctx, *userID); err != nil {
			log.Fatal(err)
		}
		fmt.Println("welcome sent")
		return
	}

	fmt.Printf("===== email-gate (%s#%s) =====\n", *username, *discriminator)
	fmt.Println("Escribe comandos como en un DM. Ctrl+D para salir.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		reply := a.Dispatcher.Dispatch(ctx, bot.Message{
			AuthorID:      *userID,
			Username:      *username,
			Discriminator: *discriminator,
			Content:       scanner.Text(),
			IsDirect:      true,
		})
		if reply != "" {
			fmt.Println(reply)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}
