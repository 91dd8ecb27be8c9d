// Command client is a headless terminal player: it joins a match on the relay,
// prints chat and the game result, and sends whatever is typed as chat.
//
//	/who   list online players
//	/dead  report zero health
//	/quit  disconnect
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/versus-relay/internal/client"
	"github.com/DoyleJ11/versus-relay/internal/config"
	"github.com/DoyleJ11/versus-relay/internal/logging"
	"github.com/DoyleJ11/versus-relay/pkg/protocol"
)

const (
	tickEvery     = 50 * time.Millisecond
	positionEvery = 500 * time.Millisecond
)

func main() {
	name := flag.String("name", "", "player name")
	ship := flag.Int("ship", 1, "ship type")
	matchID := flag.Int("match", 0, "match id; 0 asks the relay for a new one")
	flag.Parse()

	if err := run(*name, *ship, *matchID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(name string, ship, matchID int) error {
	if name == "" {
		return fmt.Errorf("-name is required")
	}
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if matchID == 0 {
		if matchID, err = newMatch(ctx, cfg.ServerURL); err != nil {
			log.Warn("could not allocate a match id, using 1", zap.Error(err))
			matchID = 1
		}
	}

	codec := protocol.JSON
	if cfg.Codec == "msgpack" {
		codec = protocol.MsgPack
	}

	done := make(chan struct{}, 1)
	finish := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}

	c := client.New(client.Config{
		Name:           name,
		ShipType:       ship,
		MatchID:        matchID,
		Codec:          codec,
		ConnectTimeout: cfg.ConnectTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		PingInterval:   cfg.PingInterval,
		OnChat:         func(line string) { fmt.Println(line) },
		OnGameOver:     func(o client.Outcome) { fmt.Println(outcomeLine(name, o)) },
		OnDisconnect: func(err error) {
			fmt.Println("connection lost:", err)
			finish()
		},
	}, log.Named("client"))

	if !c.Connect(ctx, cfg.ServerURL) {
		return fmt.Errorf("could not join %s as %q", cfg.ServerURL, name)
	}
	defer c.Disconnect()
	fmt.Printf("joined match #%d as %s\n", c.MatchID(), c.Name())

	health := client.RemoteHealth
	lines := make(chan string)
	go readLines(lines)

	tick := time.NewTicker(tickEvery)
	defer tick.Stop()
	pos := time.NewTicker(positionEvery)
	defer pos.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case <-tick.C:
			c.Tick()
			if n := c.TakeHits(); n > 0 {
				health = max(0, health-n)
				fmt.Printf("hit! health %d\n", health)
			}
		case <-pos.C:
			c.SendPosition(client.RemoteSpawnX, client.RemoteSpawnY, health, 0)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch line = strings.TrimSpace(line); line {
			case "":
			case "/quit":
				return nil
			case "/who":
				fmt.Println("online:", strings.Join(c.OnlinePlayers(), ", "))
			case "/dead":
				health = 0
				c.SendPosition(client.RemoteSpawnX, client.RemoteSpawnY, health, 0)
			default:
				c.SendChat(line)
			}
		}
	}
}

// outcomeLine announces a win only when it is ours: a relayed GameOver may be
// another player's own claim.
func outcomeLine(self string, o client.Outcome) string {
	if o.IsWinner && o.Name == self {
		return fmt.Sprintf("*** you win with %d points ***", o.Score)
	}
	return fmt.Sprintf("*** game over, %d points ***", o.Score)
}

func readLines(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
}

// newMatch asks the relay's HTTP side for a fresh match id.
func newMatch(ctx context.Context, wsURL string) (int, error) {
	base := strings.TrimSuffix(wsURL, "/ws")
	base = strings.Replace(base, "ws", "http", 1)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/matches", nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("POST /matches: %s", resp.Status)
	}
	var body struct {
		MatchID int `json:"match_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.MatchID, nil
}
