// Command solenode is the validator node CLI, adapted from the
// teacher's cli.go/main.go (cobra-based resource/action subcommands,
// fatih/color status output).
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sole-chain/sole-poa/internal/api"
	"github.com/sole-chain/sole-poa/internal/block"
	"github.com/sole-chain/sole-poa/internal/chain"
	"github.com/sole-chain/sole-poa/internal/cli"
	"github.com/sole-chain/sole-poa/internal/clock"
	"github.com/sole-chain/sole-poa/internal/config"
	"github.com/sole-chain/sole-poa/internal/p2p"
	"github.com/sole-chain/sole-poa/internal/storage"
	"github.com/sole-chain/sole-poa/internal/txn"
	"github.com/sole-chain/sole-poa/internal/wallet"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "solenode",
	Short: "sole-poa validator node CLI",
}

func main() {
	fmt.Print(cli.Banner)
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "path to node config YAML")
	if err := rootCmd.Execute(); err != nil {
		cli.Error("%v", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		cli.Error("load config: %v", err)
		os.Exit(1)
	}
	return cfg
}

func walletPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "wallet.dat")
}

func init() {
	walletCmd := &cobra.Command{Use: "wallet", Short: "Manage local wallets"}
	rootCmd.AddCommand(walletCmd)

	walletCmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Generate a new wallet with a BIP-39 recovery mnemonic",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			ws, err := wallet.Open(walletPath(cfg))
			if err != nil {
				cli.Error("open wallets: %v", err)
				os.Exit(1)
			}
			w, mnemonic, err := wallet.NewWithMnemonic()
			if err != nil {
				cli.Error("generate wallet: %v", err)
				os.Exit(1)
			}
			addr := string(w.Address())
			ws.Entries[addr] = w
			if err := ws.Save(); err != nil {
				cli.Error("save wallets: %v", err)
				os.Exit(1)
			}
			cli.Success("created wallet %s", addr)
			cli.Warning("recovery phrase (write this down, it is not stored): %s", mnemonic)
		},
	})

	walletCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved addresses",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			ws, err := wallet.Open(walletPath(cfg))
			if err != nil {
				cli.Error("open wallets: %v", err)
				os.Exit(1)
			}
			for addr := range ws.Entries {
				fmt.Println(addr)
			}
		},
	})

	chainCmd := &cobra.Command{Use: "chain", Short: "Manage the local chain database"}
	rootCmd.AddCommand(chainCmd)

	chainCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize the local database with the genesis block",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			params, err := cfg.BuildPoA()
			if err != nil {
				cli.Error("build poa parameters: %v", err)
				os.Exit(1)
			}
			if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
				cli.Error("create data dir: %v", err)
				os.Exit(1)
			}
			store, err := storage.OpenBadgerStore(filepath.Join(cfg.DataDir, "chaindata"))
			if err != nil {
				cli.Error("open storage: %v", err)
				os.Exit(1)
			}
			defer store.Close()

			seed := []byte("sole-poa genesis")
			if _, err := chain.Init(store, params, clock.System{}, seed); err != nil {
				cli.Error("initialize chain: %v", err)
				os.Exit(1)
			}
			cli.Success("genesis block written to %s", cfg.DataDir)
		},
	})

	chainCmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print every block in the chain",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			params, err := cfg.BuildPoA()
			if err != nil {
				cli.Error("build poa parameters: %v", err)
				os.Exit(1)
			}
			store, err := storage.OpenBadgerStore(filepath.Join(cfg.DataDir, "chaindata"))
			if err != nil {
				cli.Error("open storage: %v", err)
				os.Exit(1)
			}
			defer store.Close()

			c, err := chain.Open(store, params, clock.System{})
			if err != nil {
				cli.Error("open chain: %v", err)
				os.Exit(1)
			}
			for i := uint64(0); i <= c.Height(); i++ {
				b, err := c.GetBlock(i)
				if err != nil {
					cli.Error("get block %d: %v", i, err)
					os.Exit(1)
				}
				fmt.Printf("#%d origin=%s txs=%d ts=%d\n", b.Index, b.Header.Origin, len(b.Transactions), b.Header.Timestamp)
			}
		},
	})

	chainCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the entire stored chain against consensus rules",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			params, err := cfg.BuildPoA()
			if err != nil {
				cli.Error("build poa parameters: %v", err)
				os.Exit(1)
			}
			store, err := storage.OpenBadgerStore(filepath.Join(cfg.DataDir, "chaindata"))
			if err != nil {
				cli.Error("open storage: %v", err)
				os.Exit(1)
			}
			defer store.Close()

			c, err := chain.Open(store, params, clock.System{})
			if err != nil {
				cli.Error("open chain: %v", err)
				os.Exit(1)
			}
			if err := c.ValidateStoredChain(); err != nil {
				cli.Error("chain invalid: %v", err)
				os.Exit(1)
			}
			cli.Success("chain valid through height %d", c.Height())
		},
	})

	nodeCmd := &cobra.Command{Use: "node", Short: "Run the validator node"}
	rootCmd.AddCommand(nodeCmd)

	var originAddr string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the P2P + API node",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			params, err := cfg.BuildPoA()
			if err != nil {
				cli.Error("build poa parameters: %v", err)
				os.Exit(1)
			}

			store, err := storage.OpenBadgerStore(filepath.Join(cfg.DataDir, "chaindata"))
			if err != nil {
				cli.Error("open storage: %v", err)
				os.Exit(1)
			}
			defer store.Close()

			c, err := chain.Open(store, params, clock.System{})
			if err != nil {
				cli.Error("open chain: %v", err)
				os.Exit(1)
			}

			apiServer := api.New(c, params)

			ctx := context.Background()
			onBlock := func(b *block.Block) {
				cli.Network("accepted block %d from peer", b.Index)
				apiServer.Broadcast(b)
			}
			if _, err := p2p.New(ctx, cfg.P2PListenPort, c, cfg.BootstrapPeers, onBlock); err != nil {
				cli.Error("start p2p node: %v", err)
				os.Exit(1)
			}

			cli.Network("listening for peers on port %d", cfg.P2PListenPort)
			cli.Info("api listening on %s", cfg.APIListenAddr)
			if originAddr != "" {
				cli.Info("validator address %s (this command does not forge blocks)", originAddr)
			}
			if err := apiServer.ListenAndServe(cfg.APIListenAddr); err != nil {
				cli.Error("api server: %v", err)
				os.Exit(1)
			}
		},
	}
	startCmd.Flags().StringVar(&originAddr, "origin", "", "validator address to report at startup; blocks are not forged by this command")
	nodeCmd.AddCommand(startCmd)

	txCmd := &cobra.Command{Use: "tx", Short: "Inspect transaction encodings"}
	rootCmd.AddCommand(txCmd)

	txCmd.AddCommand(&cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode a hex-encoded transaction and print its fields",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			raw, err := hex.DecodeString(args[0])
			if err != nil {
				cli.Error("invalid hex: %v", err)
				os.Exit(1)
			}
			tx, err := txn.FromBytes(raw)
			if err != nil {
				cli.Error("decode transaction: %v", err)
				os.Exit(1)
			}
			fmt.Printf("id=%s coinbase=%v inputs=%d outputs=%d\n", tx.Hash(), tx.IsCoinbase(), len(tx.Vin), len(tx.Vout))
		},
	})
}
