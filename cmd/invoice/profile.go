package main

import (
	"errors"
	"fmt"

	invoice "github.com/alnah/go-invoice"
	"github.com/alnah/go-invoice/internal/imagefetch"
	"github.com/alnah/go-invoice/internal/profile"
	"github.com/alnah/go-invoice/internal/yamlutil"
)

// ErrNoProfile is returned by profile show when nothing is saved.
var ErrNoProfile = errors.New("no company profile saved")

// runProfile handles profile show, set and clear.
func runProfile(args []string, env *Environment) error {
	if len(args) == 0 {
		printProfileUsage(env.Stderr)
		return fmt.Errorf("%w: profile needs a subcommand", ErrUsage)
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "show", "set", "clear":
	case "-h", "--help":
		printProfileUsage(env.Stdout)
		return nil
	default:
		printProfileUsage(env.Stderr)
		return fmt.Errorf("%w: unknown profile subcommand %q", ErrUsage, sub)
	}

	f, positional, err := parseCompanyFlags(rest, env.Stderr)
	if err != nil {
		return err
	}
	if len(positional) > 0 {
		return fmt.Errorf("%w: unexpected argument %q", ErrUsage, positional[0])
	}

	cfg, err := loadConfig(f.common.config, env)
	if err != nil {
		return err
	}
	store, err := openProfiles(cfg, env)
	if err != nil {
		return err
	}

	switch sub {
	case "show":
		return showProfile(store, env)
	case "set":
		return setProfile(store, f, env)
	default:
		if err := store.Clear(); err != nil {
			return err
		}
		if !f.common.quiet {
			fmt.Fprintln(env.Stdout, "Cleared company profile")
		}
		return nil
	}
}

func showProfile(store profile.Store, env *Environment) error {
	info, ok, err := store.Load()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoProfile
	}
	data, err := yamlutil.Marshal(info)
	if err != nil {
		return err
	}
	_, err = env.Stdout.Write(data)
	return err
}

// setProfile merges the given fields over the saved profile and stores it.
func setProfile(store profile.Store, f *companyFlags, env *Environment) error {
	saved, _, err := store.Load()
	if err != nil {
		return err
	}

	if f.logo != "" {
		if err := imagefetch.ValidateURL(f.logo); err != nil {
			return err
		}
	}

	info := profile.Merge(saved, invoice.CompanyInfo{
		Name:     f.name,
		Address:  f.address,
		City:     f.city,
		Phone:    f.phone,
		Email:    f.email,
		Logo:     f.logo,
		BankInfo: f.bankInfo,
	})
	if err := store.Save(info); err != nil {
		return err
	}
	if !f.common.quiet {
		fmt.Fprintf(env.Stdout, "Saved company profile for %s\n", info.Name)
	}
	return nil
}
