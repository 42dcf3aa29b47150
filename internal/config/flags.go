package config

import "flag"

// RegisterFlags binds the server's CLI flags onto fs, with cfg
// as their initial values (so a previously loaded YAML file is the
// base and flags layer on top as overrides). Call fs.Parse, then
// ApplyFlags to pick up which flags were explicitly set.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) *FlagValues {
	fv := &FlagValues{}
	fs.StringVar(&fv.Dir, "dir", cfg.Dir, "directory containing the snapshot")
	fs.StringVar(&fv.DBFilename, "dbfilename", cfg.DBFilename, "snapshot file name")
	fs.IntVar(&fv.Port, "port", cfg.Port, "listen port")
	fs.StringVar(&fv.ReplicaOf, "replicaof", cfg.ReplicaOf, `run as replica of "<host> <port>"`)
	return fv
}

// FlagValues holds the parsed flag.FlagSet destinations; ApplyFlags
// copies the values of explicitly set flags onto a Config loaded from
// file.
type FlagValues struct {
	Dir        string
	DBFilename string
	Port       int
	ReplicaOf  string
}

// ApplyFlags overlays any flags the caller actually set onto cfg.
// fs.Visit only calls back for flags that were present on the command
// line, so a flag left at its (file-derived) default does not
// overwrite the file's value.
func ApplyFlags(fs *flag.FlagSet, cfg *Config, fv *FlagValues) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Dir = fv.Dir
		case "dbfilename":
			cfg.DBFilename = fv.DBFilename
		case "port":
			cfg.Port = fv.Port
		case "replicaof":
			cfg.ReplicaOf = fv.ReplicaOf
		}
	})
}
