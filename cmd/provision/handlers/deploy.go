package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"

	"github.com/imamik/provision/internal/node"
	"github.com/imamik/provision/internal/plan"
	"github.com/imamik/provision/internal/template"
	"github.com/imamik/provision/internal/util/naming"
)

// DeployOptions holds the flags of the deploy command. Nil pointers and
// empty strings fall back to the configured defaults.
type DeployOptions struct {
	Bundles  []string
	Image    string
	Location *int
	Size     *int
	Name     string
	Prefix   string
	// Vars are key=value substitution overrides.
	Vars            []string
	DescriptionFile string
	Destroyable     bool
	Quiet           bool
}

// startProgress shows msg until the returned function is called.
var startProgress = func(msg string) func() {
	if !isTerminal(stderr) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(stderr))
	s.Suffix = " " + msg
	s.Start()
	return s.Stop
}

// Deploy handles the deploy command.
//
// It plans the requested bundles, creates the node and runs the plan on it.
// A deployment whose scripts exited non-zero returns an ExitError carrying
// the summed exit statuses.
func Deploy(ctx context.Context, global Global, opts DeployOptions) error {
	env, err := setup(global)
	if err != nil {
		return err
	}
	defer env.finish()

	settings := env.cfg.Settings

	overrides := template.NewVars(env.log)
	if err := overrides.MergeKeyValues(opts.Vars); err != nil {
		return err
	}

	alias := settings.Image
	if opts.Image != "" {
		alias = opts.Image
	}
	name := opts.Name
	if name == "" {
		prefix := settings.NamePrefix
		if opts.Prefix != "" {
			prefix = opts.Prefix
		}
		name = naming.Node(prefix)
	}

	p, err := env.planner.Plan(plan.Request{
		NodeName:   name,
		Defaults:   settings.DefaultBundlesFor(alias),
		Bundles:    opts.Bundles,
		PublicKeys: env.cfg.AuthorizedKeys(),
		Vars:       env.cfg.Vars,
		Overrides:  overrides.Map(),
	})
	if err != nil {
		return err
	}

	deployOpts := node.DeployOptions{
		LocationIndex: settings.Location,
		SizeIndex:     settings.Size,
		ImageName:     settings.ImageName(alias),
		SSHKeyNames:   settings.SSH.KeyNames,
		UserData:      settings.UserData,
		Destroyable:   opts.Destroyable,
	}
	if opts.Location != nil {
		deployOpts.LocationIndex = *opts.Location
	}
	if opts.Size != nil {
		deployOpts.SizeIndex = *opts.Size
	}

	stop := func() {}
	if !opts.Quiet && global.Verbosity == 0 {
		stop = startProgress(fmt.Sprintf("Deploying %s...", name))
	}
	desc, err := env.driver.Deploy(ctx, p, deployOpts)
	stop()
	if err != nil {
		return err
	}

	switch {
	case opts.Quiet:
		fmt.Fprintln(stdout, desc.Name)
	case global.Verbosity > 0:
		fmt.Fprintln(stdout, desc.String())
	default:
		fmt.Fprint(stdout, renderDeploy(desc, isTerminal(stdout)))
	}

	if opts.DescriptionFile != "" {
		if err := desc.WriteJSON(opts.DescriptionFile); err != nil {
			return err
		}
	}

	if sum := desc.SumExitStatus(); sum != 0 {
		return &ExitError{
			Code: scriptExitCode(sum),
			Err:  fmt.Errorf("scripts on %s exited with a combined status of %d", desc.Name, sum),
		}
	}
	return nil
}
