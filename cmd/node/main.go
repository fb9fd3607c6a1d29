// Command node is the avalanche-node binary: genesis/serve/mine subcommands
// wired through urfave/cli/v2, mirroring the shape of the teacher's root
// main.go (a single binary multiplexing several named entrypoints) without
// its sprawling service-by-service flag surface, since this node runs a
// fixed trio of servers rather than a pick-and-choose microservice mesh.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordishs/gocore"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/alsacoin/avalanche-node/internal/config"
	"github.com/alsacoin/avalanche-node/internal/minerclient"
	"github.com/alsacoin/avalanche-node/internal/model"
	"github.com/alsacoin/avalanche-node/internal/protocol"
	"github.com/alsacoin/avalanche-node/internal/services"
	"github.com/alsacoin/avalanche-node/internal/services/clientserver"
	"github.com/alsacoin/avalanche-node/internal/services/consensusserver"
	"github.com/alsacoin/avalanche-node/internal/services/miningserver"
	"github.com/alsacoin/avalanche-node/internal/storage/leveldbkv"
	"github.com/alsacoin/avalanche-node/internal/transport/tcptransport"
	"github.com/alsacoin/avalanche-node/internal/ulogger"
)

const progname = "avalanche-node"

var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
	gocore.Log(progname)
}

func main() {
	logger := ulogger.New(progname)

	app := &cli.App{
		Name:  progname,
		Usage: "a decentralized Avalanche-consensus DAG currency node",
		Commands: []*cli.Command{
			genesisCommand(logger),
			serveCommand(logger),
			mineCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("%v", err)
	}
}

func genesisCommand(logger ulogger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "genesis",
		Usage: "initialize the store with a fresh eve transaction and write consensus state 0",
		Action: func(c *cli.Context) error {
			ctx := c.Context

			store, pool, tr, state, err := buildState(logger)
			if err != nil {
				return err
			}
			defer store.Close()
			defer pool.Close()
			defer tr.Close()

			eve := model.NewEveAccount(config.Stage())

			seeds := make([]model.Address, 0, len(config.SeedAddresses()))
			logger.Infof("genesis: %d seed address(es) configured, none resolvable to Address until first contact", len(config.SeedAddresses()))

			if err := state.Create(ctx, eve, seeds); err != nil {
				return err
			}

			logger.Infof("genesis: eve account and transaction written for stage %s", config.Stage())
			return nil
		},
	}
}

func serveCommand(logger ulogger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the client, consensus, and mining servers against an existing store",
		Action: func(c *cli.Context) error {
			ctx, cancel := signalContext()
			defer cancel()

			store, pool, tr, state, err := buildState(logger)
			if err != nil {
				return err
			}
			defer store.Close()
			defer pool.Close()
			defer tr.Close()

			if err := state.Open(ctx); err != nil {
				return err
			}

			miningAddr, _ := gocore.Config().Get("mining_address", "127.0.0.1:4001")
			miningTransport, err := tcptransport.New(miningAddr)
			if err != nil {
				return err
			}
			defer miningTransport.Close()

			healthAddr, _ := gocore.Config().Get("health_address", ":8000")
			httpServer := services.ServeHTTP(healthAddr)
			defer func() { _ = httpServer.Close() }()

			cs := clientserver.New(state, tr, logger.New("client"))
			ms := miningserver.New(state, miningTransport, logger.New("mining"))
			avs := consensusserver.New(state, logger.New("consensus"))

			timeout, derr, _ := gocore.Config().GetDuration("message_timeout", 30*time.Second)
			if derr != nil {
				return derr
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return cs.Serve(gctx, timeout) })
			g.Go(func() error { return ms.Serve(gctx, timeout) })
			g.Go(func() error { return avs.Serve(gctx) })

			logger.Infof("serve: client on %s, mining on %s, health on %s", config.LocalAddress(), miningAddr, healthAddr)

			if err := g.Wait(); err != nil && ctx.Err() == nil {
				return err
			}

			return nil
		},
	}
}

func mineCommand(logger ulogger.Logger) *cli.Command {
	return &cli.Command{
		Name:      "mine",
		Usage:     "build, sign, and submit a transaction to a mining server on behalf of a local keypair",
		ArgsUsage: "<mining-address> <to-address-hex> <amount>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 3 {
				return cli.Exit("usage: mine <mining-address> <to-address-hex> <amount>", 1)
			}

			minerAddr := c.Args().Get(0)
			toHex := c.Args().Get(1)
			var amount uint64
			if _, err := fmt.Sscanf(c.Args().Get(2), "%d", &amount); err != nil {
				return cli.Exit(fmt.Sprintf("invalid amount: %v", err), 1)
			}

			toBytes, err := hex.DecodeString(toHex)
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid to-address: %v", err), 1)
			}
			toAddr, err := model.AddressFromBytes(toBytes)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			_, priv, err := ed25519.GenerateKey(nil)
			if err != nil {
				return err
			}

			localAddr, _ := gocore.Config().Get("local_address", "127.0.0.1:4010")
			tr, err := tcptransport.New(localAddr)
			if err != nil {
				return err
			}
			defer tr.Close()

			client := minerclient.New(tr, tr.LocalAddress(), priv, logger.New("minerclient"))

			tx, err := client.NewTransaction(config.Stage(), model.NewDigestSet(), []model.Output{{Address: toAddr, Amount: amount}}, 0)
			if err != nil {
				return err
			}

			timeout, derr, _ := gocore.Config().GetDuration("message_timeout", 30*time.Second)
			if derr != nil {
				return derr
			}

			minerAddrBytes, err := tcptransport.AddressToBytes(minerAddr)
			if err != nil {
				return err
			}

			mined, err := client.Broadcast(c.Context, minerAddrBytes, tx, timeout)
			if err != nil {
				return err
			}

			logger.Infof("mine: submitted transaction %s, mined digest %s", mined.ID, mined.Digest)
			return nil
		},
	}
}

func buildState(logger ulogger.Logger) (store, pool *leveldbkv.Store, tr *tcptransport.Transport, state *protocol.State, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	maxValueSize, _ := gocore.Config().GetInt("store_max_value_size", 1<<20)
	maxSize, _ := gocore.Config().GetInt("store_max_size", 1<<34)

	store, err = leveldbkv.Open(config.StoreDir(), uint64(maxValueSize), uint64(maxSize), 0)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	poolMaxSize, _ := gocore.Config().GetInt("pool_max_size", 1<<30)
	poolStore, err := leveldbkv.Open(config.PoolDir(), uint64(maxValueSize), uint64(poolMaxSize), 0)
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, err
	}

	tr, err = tcptransport.New(config.LocalAddress())
	if err != nil {
		store.Close()
		poolStore.Close()
		return nil, nil, nil, nil, err
	}

	state = protocol.New(config.Stage(), tr.LocalAddress(), cfg.ToModel(), config.BalloonParams(), store, poolStore, tr, logger.New("state"))

	return store, poolStore, tr, state, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
