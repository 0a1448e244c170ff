// Command blinkboot runs the OTA propagation bootloader core for one tile,
// or drives an in-process simulated mesh for development and testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Move38/Blinks-SDK/firmwareimage"
	"github.com/Move38/Blinks-SDK/flashsvc"
	"github.com/Move38/Blinks-SDK/handoff"
	"github.com/Move38/Blinks-SDK/hwface"
	"github.com/Move38/Blinks-SDK/ircodec"
	"github.com/Move38/Blinks-SDK/meshconfig"
	"github.com/Move38/Blinks-SDK/meshsim"
	"github.com/Move38/Blinks-SDK/pixel"
	"github.com/Move38/Blinks-SDK/supervisor"
)

type stdLogger struct{}

func (stdLogger) Debug(msg string, kv ...interface{}) { log.Println(append([]interface{}{"DEBUG", msg}, kv...)...) }
func (stdLogger) Info(msg string, kv ...interface{})  { log.Println(append([]interface{}{"INFO", msg}, kv...)...) }
func (stdLogger) Error(msg string, kv ...interface{}) { log.Println(append([]interface{}{"ERROR", msg}, kv...)...) }

func main() {
	flagSeed := flag.Bool("seed", false, "Run as a seed-only tile advertising a built-in image")
	flagDownload := flag.Bool("download", false, "Run in download mode, waiting for a neighbor's SEED")
	flagList := flag.Bool("list-ports", false, "List available serial ports and exit")
	flagMesh := flag.Bool("mesh", false, "Simulate every tile in -config in-process instead of running hardware")
	flagConfig := flag.String("config", "", "Path to a mesh config YAML file describing this tile's face wiring")
	flagTile := flag.String("tile", "", "Tile id within -config to run as")
	flagHexFile := flag.String("hexfile", "", "Intel HEX image to seed (required with -seed)")

	flag.Parse()

	if *flagList {
		ports, err := hwface.ListPorts()
		if err != nil {
			log.Fatalln(err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if *flagMesh {
		if *flagConfig == "" {
			log.Fatalln("-config is required with -mesh")
		}
		runMesh(*flagConfig, *flagHexFile)
		return
	}

	if !*flagSeed && !*flagDownload {
		fmt.Println("Run with -help to show available flags")
		return
	}

	if *flagConfig == "" || *flagTile == "" {
		log.Fatalln("-config and -tile are required to run a tile")
	}

	cfg, err := meshconfig.Load(*flagConfig)
	if err != nil {
		log.Fatalln(err)
	}
	if err := meshconfig.Validate(cfg); err != nil {
		log.Fatalln(err)
	}

	var tileCfg *meshconfig.TileConfig
	for i := range cfg.Mesh.Tiles {
		if cfg.Mesh.Tiles[i].ID == *flagTile {
			tileCfg = &cfg.Mesh.Tiles[i]
			break
		}
	}
	if tileCfg == nil {
		log.Fatalf("tile %q not found in %s", *flagTile, *flagConfig)
	}

	sup, err := buildSupervisor(tileCfg)
	if err != nil {
		log.Fatalln(err)
	}

	if *flagSeed {
		if *flagHexFile == "" {
			log.Fatalln("-hexfile is required with -seed")
		}
		builtin, err := firmwareimage.LoadHexFile(*flagHexFile)
		if err != nil {
			log.Fatalln(err)
		}
		if err := sup.EnterSeedOnlyMode(builtin); err != nil {
			log.Fatalln(err)
		}
	} else {
		sup.EnterDownloadMode()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result := sup.Run(ctx)

	inv := handoff.NewLogInvoker(stdLogger{})
	if err := inv.Invoke(result); err != nil {
		log.Fatalln(err)
	}
}

func buildSupervisor(tileCfg *meshconfig.TileConfig) (*supervisor.Supervisor, error) {
	slot := flashsvc.NewSlot(flashsvc.MaxPages)
	flash := flashsvc.NewService(slot)

	var links [ircodec.FaceCount]ircodec.FaceLink
	for f, dev := range tileCfg.Serial.Devices {
		if dev == "" {
			continue
		}
		link, err := hwface.OpenSerialFaceLink(dev, tileCfg.Serial.BaudRate)
		if err != nil {
			return nil, fmt.Errorf("blinkboot: open face %d (%s): %w", f, dev, err)
		}
		links[f] = link
	}
	codec := ircodec.NewCodec(links)

	display, err := pixel.NewGPIODisplay(tileCfg.Pixels.Faces)
	if err != nil {
		return nil, fmt.Errorf("blinkboot: pixel display: %w", err)
	}

	var opts []supervisor.Option
	opts = append(opts, supervisor.WithLogger(stdLogger{}))
	if tileCfg.TickMs > 0 {
		opts = append(opts, supervisor.WithTickInterval(msDuration(tileCfg.TickMs)))
	}

	return supervisor.New(flash, codec, display, opts...), nil
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// runMesh simulates every tile named in a mesh config in-process, wiring
// their faces together per config.Mesh.Tiles[*].Faces instead of opening
// real serial ports, and reports each tile's handoff result.
func runMesh(configPath, hexFile string) {
	cfg, err := meshconfig.Load(configPath)
	if err != nil {
		log.Fatalln(err)
	}
	if err := meshconfig.Validate(cfg); err != nil {
		log.Fatalln(err)
	}

	var builtin *flashsvc.Slot
	if hexFile != "" {
		builtin, err = firmwareimage.LoadHexFile(hexFile)
		if err != nil {
			log.Fatalln(err)
		}
	}

	tiles := make(map[string]*meshsim.Tile, len(cfg.Mesh.Tiles))
	for _, t := range cfg.Mesh.Tiles {
		tiles[t.ID] = meshsim.NewTile(t.ID, supervisor.WithLogger(stdLogger{}))
	}

	connected := make(map[string]bool)
	for _, t := range cfg.Mesh.Tiles {
		for face, wiring := range t.Faces {
			if wiring.Neighbor == "" {
				continue
			}
			key := wireKey(t.ID, face, wiring.Neighbor, wiring.Face)
			if connected[key] {
				continue
			}
			meshsim.Connect(tiles[t.ID], face, tiles[wiring.Neighbor], wiring.Face, 0, nil)
			connected[key] = true
			connected[wireKey(wiring.Neighbor, wiring.Face, t.ID, face)] = true
		}
	}

	for _, t := range cfg.Mesh.Tiles {
		tile := tiles[t.ID]
		if t.Role == "source" {
			if builtin == nil {
				log.Fatalf("tile %q is a source but -hexfile was not given", t.ID)
			}
			if err := tile.Supervisor.EnterSeedOnlyMode(builtin); err != nil {
				log.Fatalln(err)
			}
		} else {
			tile.Supervisor.EnterDownloadMode()
		}
	}

	all := make([]*meshsim.Tile, 0, len(tiles))
	for _, t := range tiles {
		all = append(all, t)
	}

	for i := 0; i < 200000; i++ {
		allDone := true
		for _, t := range all {
			t.Supervisor.Pass()
			t.Supervisor.Tick()
			if !t.Supervisor.Download().Descriptor().Done() && !t.Supervisor.UntilDoneExpired() {
				allDone = false
			}
		}
		if allDone {
			break
		}
	}

	for _, t := range cfg.Mesh.Tiles {
		result := tiles[t.ID].Supervisor.Finish()
		fmt.Printf("%s: success=%v reason=%v\n", t.ID, result.Success, result.Reason)
	}
}

func wireKey(tileA string, faceA int, tileB string, faceB int) string {
	return fmt.Sprintf("%s:%d->%s:%d", tileA, faceA, tileB, faceB)
}
