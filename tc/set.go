package tc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/bestmethod/inslice"
)

const netemModule = "sch_netem"

// ErrNoNetem explains how to get the netem scheduler onto a host that lacks it.
var ErrNoNetem = fmt.Errorf("kernel module '%s' not found; centos install via `yum install kernel-modules-extra iproute-tc`; reboot may be required", netemModule)

// InsertKernelMod loads sch_netem via modprobe.
func InsertKernelMod() error {
	out, err := exec.Command("modprobe", netemModule).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %s", err, string(out))
	}
	return nil
}

// ListKernelMods returns the names of the loaded kernel modules.
func ListKernelMods() ([]string, error) {
	f, err := os.Open("/proc/modules")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseModules(f)
}

func parseModules(r io.Reader) ([]string, error) {
	mods := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		mods = append(mods, fields[0])
	}
	return mods, scanner.Err()
}

// EnsureNetem loads sch_netem unless it is already present.
func EnsureNetem() error {
	mods, err := ListKernelMods()
	if err != nil {
		return err
	}
	if inslice.HasString(mods, netemModule) {
		return nil
	}
	if err := InsertKernelMod(); err != nil {
		return fmt.Errorf("%w: %s", ErrNoNetem, err)
	}
	return nil
}

// Set resolves iface and replaces its root qdisc with netem configured from p.
func (s *Session) Set(iface string, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	ifindex, err := s.Resolve(iface)
	if err != nil {
		return err
	}
	s.log.WithField("interface", iface).Info("setting netem")
	return s.Apply(ifindex, ModeReplace, p)
}
