// Command debugtool-host is a thin flag-based harness for manually
// exercising the driver stack end to end: enumerate, init, post-init, log
// the serial number, wait for SIGINT/SIGTERM, close. It is explicitly not the
// GDB-server/CLI layer spec.md places out of scope (§2.5) - it carries no
// protocol of its own toward a human operator beyond flags and log lines,
// in the manner of guiperry-HASHER's cmd/driver/hasher-host/main.go and
// cmd/monitor/main.go.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gousb"

	"debugtool/internal/tool"
	"debugtool/internal/toolconfig"
	"debugtool/internal/toolerrors"
)

var (
	toolName     = flag.String("tool", "auto", "tool model to drive: auto, atmel-ice, power-debugger, jtagice3, mplab-snap, mplab-pickit4, xplained-pro, xplained-mini, xplained-nano, curiosity-nano, wch-linke")
	cmsisDelayMs = flag.Int("cmsis-command-delay-ms", 0, "minimum wall-clock interval between successive CMSIS-DAP framer writes")
	exitIapMode  = flag.Bool("exit-iap-mode", true, "recover a WCH-Link found only in IAP mode into its normal mode")
	dwTimeoutUs  = flag.Int("riscv-target-response-timeout-us", 100, "DMI operation timeout passed to the (external) RISC-V Debug-Module translator")
)

// shell is the lifecycle surface both EdbgShell and WchLinkShell satisfy;
// the harness drives either concrete type through it.
type shell interface {
	Init(ctx *gousb.Context) error
	PostInit() error
	Close() error
	SerialNumber() (string, error)
}

// candidate pairs a flag name with a shell constructor, checked against a
// live gousb.Context to support "-tool auto" (spec §6's identity table).
type candidate struct {
	flagName string
	identity tool.Identity
	build    func(cfg toolconfig.ToolConfig) shell
}

func candidates(cfg toolconfig.ToolConfig) []candidate {
	edbg := func(name string, id tool.Identity) candidate {
		return candidate{
			flagName: name,
			identity: id,
			build: func(cfg toolconfig.ToolConfig) shell {
				return tool.NewEdbgShell(id, cfg, nil)
			},
		}
	}
	return []candidate{
		edbg("atmel-ice", tool.AtmelICE),
		edbg("power-debugger", tool.PowerDebugger),
		edbg("jtagice3", tool.JTAGICE3),
		edbg("mplab-snap", tool.MplabSnap),
		edbg("mplab-pickit4", tool.MplabPICkit4),
		edbg("xplained-pro", tool.XplainedPro),
		edbg("xplained-mini", tool.XplainedMini),
		edbg("xplained-nano", tool.XplainedNano),
		edbg("curiosity-nano", tool.CuriosityNano),
		{
			flagName: "wch-linke",
			identity: tool.WCHLinkE.Identity,
			build: func(cfg toolconfig.ToolConfig) shell {
				return tool.NewWchLinkShell(tool.WCHLinkE, cfg)
			},
		},
	}
}

func main() {
	flag.Parse()

	cfg := toolconfig.Default()
	cfg.CmsisCommandDelay = time.Duration(*cmsisDelayMs) * time.Millisecond
	cfg.ExitIapMode = *exitIapMode
	cfg.RiscVDebugTranslator.TargetResponseTimeout = time.Duration(*dwTimeoutUs) * time.Microsecond

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	s, name := resolve(ctx, cfg)
	if s == nil {
		log.Fatalf("no matching USB debug tool found (tool=%s)", *toolName)
	}

	log.Printf("%s: initialising", name)
	if err := s.Init(ctx); err != nil {
		log.Fatalf("%s: init failed: %v", name, err)
	}

	if err := s.PostInit(); err != nil {
		log.Printf("%s: post_init warning: %v", name, err)
	}

	if serial, err := s.SerialNumber(); err != nil {
		log.Printf("%s: could not read serial number: %v", name, err)
	} else {
		log.Printf("%s: serial number %s", name, serial)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	log.Printf("%s: ready, press Ctrl-C to close", name)
	<-quit

	log.Printf("%s: closing", name)
	if err := s.Close(); err != nil {
		log.Printf("%s: close error: %v", name, err)
	}
}

// resolve picks the shell to drive: the one named by -tool, or (in "auto"
// mode) the first candidate whose identity is currently enumerable.
func resolve(ctx *gousb.Context, cfg toolconfig.ToolConfig) (shell, string) {
	all := candidates(cfg)

	if *toolName != "auto" {
		for _, c := range all {
			if c.flagName == *toolName {
				return c.build(cfg), c.flagName
			}
		}
		log.Fatalf("unknown -tool value %q", *toolName)
	}

	for _, c := range all {
		devices, err := enumerate(ctx, c.identity)
		if err != nil {
			continue
		}
		if len(devices) > 0 {
			return c.build(cfg), c.flagName
		}
	}
	return nil, ""
}

func enumerate(ctx *gousb.Context, id tool.Identity) ([]*gousb.Device, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == id.VendorID && desc.Product == id.ProductID
	})
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindDeviceCommunicationFailure, "USB enumeration failed", err)
	}
	for _, d := range devices {
		d.Close()
	}
	return devices, nil
}
