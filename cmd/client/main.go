// Package main provides an interactive console client for the chess server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/rsoares/xadrez/internal/client"
	"github.com/rsoares/xadrez/internal/config"
	"github.com/rsoares/xadrez/internal/observability"
	"github.com/rsoares/xadrez/internal/protocol"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	c := client.New(cfg.Client, logger)
	registerPrinters(c)

	if err := c.Connect(context.Background()); err != nil {
		logger.Fatal("connecting", zap.Error(err))
	}
	defer c.Disconnect()

	fmt.Println("connected; type 'help' for commands")
	runConsole(c)
}

// registerPrinters wires observers that render server messages on stdout.
func registerPrinters(c *client.Client) {
	c.HandleError(func(err error) {
		fmt.Printf("!! connection lost for good: %v\n", err)
	})
	c.Handle(protocol.TypeWelcome, func(env protocol.Envelope) {
		var msg protocol.Welcome
		if env.Bind(&msg) == nil {
			fmt.Printf("<< %s (client id %s)\n", msg.Message, msg.ClientID)
		}
	})
	c.Handle(protocol.TypeLoginSuccess, func(env protocol.Envelope) {
		var msg protocol.LoginSuccess
		if env.Bind(&msg) == nil {
			fmt.Printf("<< logged in as %s; online: %s\n", msg.Username, strings.Join(msg.OnlineUsers, ", "))
		}
	})
	c.Handle(protocol.TypeInviteReceived, func(env protocol.Envelope) {
		var msg protocol.InviteReceived
		if env.Bind(&msg) == nil {
			fmt.Printf("<< %s invited you to a game (invite %s)\n", msg.FromPlayer, msg.InviteID)
		}
	})
	c.Handle(protocol.TypeGameStarted, func(env protocol.Envelope) {
		var msg protocol.GameStarted
		if env.Bind(&msg) == nil {
			fmt.Printf("<< game %s started: white=%s black=%s, %s to move\n",
				msg.GameID, msg.WhitePlayer, msg.BlackPlayer, msg.CurrentTurn)
		}
	})
	c.Handle(protocol.TypeMoveMade, func(env protocol.Envelope) {
		var msg protocol.MoveMade
		if env.Bind(&msg) == nil {
			fmt.Printf("<< %s played %s%s, %s to move\n", msg.Player, msg.From, msg.To, msg.CurrentTurn)
		}
	})
	c.Handle(protocol.TypeGameEnded, func(env protocol.Envelope) {
		var msg protocol.GameEnded
		if env.Bind(&msg) == nil {
			if msg.Winner != "" {
				fmt.Printf("<< game over (%s), winner: %s\n", msg.Reason, msg.Winner)
			} else {
				fmt.Printf("<< game over (%s)\n", msg.Reason)
			}
		}
	})
	c.HandleAll(func(env protocol.Envelope) {
		switch env.Type {
		case protocol.TypeWelcome, protocol.TypeLoginSuccess, protocol.TypeInviteReceived,
			protocol.TypeGameStarted, protocol.TypeMoveMade, protocol.TypeGameEnded,
			protocol.TypePing, protocol.TypePong, protocol.TypeTimeoutWarning:
			return
		}
		fmt.Printf("<< %s: %s\n", env.Type, string(env.Raw))
	})
}

// runConsole reads commands from stdin until EOF or quit.
func runConsole(c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "help":
			printHelp()
		case "register":
			if len(fields) < 3 {
				fmt.Println("usage: register <username> <password> [email]")
				continue
			}
			email := ""
			if len(fields) > 3 {
				email = fields[3]
			}
			err = c.Register(fields[1], fields[2], email)
		case "login":
			if len(fields) < 3 {
				fmt.Println("usage: login <username> <password>")
				continue
			}
			err = c.Login(fields[1], fields[2])
		case "users":
			err = c.GetOnlineUsers()
		case "invite":
			if len(fields) < 2 {
				fmt.Println("usage: invite <username>")
				continue
			}
			err = c.InvitePlayer(fields[1])
		case "accept":
			if len(fields) < 2 {
				fmt.Println("usage: accept <invite-id>")
				continue
			}
			err = c.AcceptInvite(fields[1])
		case "reject":
			if len(fields) < 2 {
				fmt.Println("usage: reject <invite-id>")
				continue
			}
			err = c.RejectInvite(fields[1])
		case "move":
			if len(fields) < 3 {
				fmt.Println("usage: move <from> <to> [promotion]")
				continue
			}
			promotion := ""
			if len(fields) > 3 {
				promotion = fields[3]
			}
			err = c.MakeMove(fields[1], fields[2], promotion)
		case "draw":
			err = c.OfferDraw()
		case "draw-accept":
			err = c.RespondDraw(true)
		case "draw-reject":
			err = c.RespondDraw(false)
		case "resign":
			err = c.Resign()
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q; type 'help'\n", fields[0])
		}

		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func printHelp() {
	fmt.Print(`commands:
  register <username> <password> [email]
  login <username> <password>
  users
  invite <username>
  accept <invite-id>
  reject <invite-id>
  move <from> <to> [promotion]
  draw | draw-accept | draw-reject
  resign
  quit
`)
}
