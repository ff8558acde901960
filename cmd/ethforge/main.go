// ethforge is the chain utility around the block execution engine: it
// initializes a chain database from a genesis specification and imports
// RLP-encoded blocks, executing each against the stored state.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethforge/ethforge/core"
	"github.com/ethforge/ethforge/core/rawdb"
	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/ethdb"
	"github.com/ethforge/ethforge/log"
	"github.com/ethforge/ethforge/rlp"
	"github.com/urfave/cli/v2"
)

// chainConfigKey stores the chain configuration JSON in the database.
var chainConfigKey = []byte("ethforge-chain-config")

var (
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Chain database directory",
		Value: "ethforge-data",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Log level (0=debug, 1=info, 2=warn, 3=error)",
		Value: 1,
	}
)

func main() {
	app := &cli.App{
		Name:  "ethforge",
		Usage: "block execution engine utility",
		Flags: []cli.Flag{dataDirFlag, verbosityFlag},
		Before: func(ctx *cli.Context) error {
			log.Root().SetLevel(log.Level(ctx.Int(verbosityFlag.Name)))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "initialize the chain database from a genesis JSON file",
				ArgsUsage: "<genesis.json>",
				Action:    initGenesis,
			},
			{
				Name:      "import",
				Usage:     "import and execute an RLP-encoded chain of blocks",
				ArgsUsage: "<blocks.rlp>",
				Action:    importChain,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openDatabase opens the LevelDB-backed chain database under datadir.
func openDatabase(ctx *cli.Context) (ethdb.Database, error) {
	path := filepath.Join(ctx.String(dataDirFlag.Name), "chaindata")
	return ethdb.NewLevelDB(path, 128, 128)
}

func initGenesis(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("init requires a genesis JSON file")
	}
	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	genesis, err := core.ParseGenesis(data)
	if err != nil {
		return err
	}
	if genesis.Config == nil {
		return fmt.Errorf("genesis file has no chain config")
	}

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	block, err := genesis.Commit(core.NewStorages(db))
	if err != nil {
		return err
	}
	configData, err := json.Marshal(genesis.Config)
	if err != nil {
		return err
	}
	if err := db.Put(chainConfigKey, configData); err != nil {
		return err
	}
	log.Info("Initialized genesis", "hash", block.Hash(), "root", block.Root())
	return nil
}

func importChain(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("import requires an RLP block file")
	}
	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	config, err := loadStoredConfig(db)
	if err != nil {
		return err
	}
	storages := core.NewStorages(db)
	executor := core.NewBlockExecutor(config, storages, core.DefaultValidators(config, nil))

	// The file holds a sequence of RLP block items.
	stream := rlp.NewStreamFromBytes(data)
	var imported int
	for !stream.AtListEnd() {
		raw, err := stream.Raw()
		if err != nil {
			break
		}
		block, err := types.DecodeBlockRLP(raw)
		if err != nil {
			return fmt.Errorf("block %d: %w", imported, err)
		}
		if err := executor.ExecuteBlock(block); err != nil {
			return fmt.Errorf("block %d (%v): %w", block.NumberU64(), block.Hash(), err)
		}
		imported++
	}
	head, err := rawdb.ReadHeadBlockHash(db)
	if err == nil {
		log.Info("Import done", "blocks", imported, "head", head)
	}
	return nil
}

// loadStoredConfig reads the chain config persisted at init time. Falls
// back to the mainnet schedule when none is stored.
func loadStoredConfig(db ethdb.Database) (*core.ChainConfig, error) {
	data, err := db.Get(chainConfigKey)
	if err != nil {
		return core.MainnetChainConfig, nil
	}
	config := new(core.ChainConfig)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}
