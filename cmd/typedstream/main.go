package main

import (
	"fmt"
	"io"
	"os"

	"github.com/docopt/docopt-go"
	log "github.com/sirupsen/logrus"

	"github.com/blacktop/typedstream/archiver"
	"github.com/blacktop/typedstream/classes"
	"github.com/blacktop/typedstream/typedstream"
)

const version = "local-build"

func main() {
	Main()
}

// Main exports main for testing, the way go-ios's own Main does.
func Main() {
	usage := fmt.Sprintf(`typedstream %s

Usage:
  typedstream read <file> [options]
  typedstream decode <file> [options]
  typedstream -h | --help
  typedstream --version

Options:
  -v --verbose   Enable Debug Logging.
  -t --trace     Enable Trace Logging (dump every head byte decision).
  -h --help      Show this screen.

The commands work as following:
   typedstream read <file>     Prints the raw event stream: every class,
                                object, reference and scalar as the
                                low-level reader produces it.
   typedstream decode <file>   Prints the decoded object tree, using any
                                registered Foundation class decoder and
                                falling back to a generic capture of
                                unrecognized classes' ivars.

Exits non-zero if <file> is not a valid typedstream, or if decoding
fails partway through.
`, version)

	arguments, err := docopt.ParseDoc(usage)
	if err != nil {
		log.Fatal(err)
	}

	if traceEnabled, _ := arguments.Bool("--trace"); traceEnabled {
		log.SetLevel(log.TraceLevel)
	} else if verboseEnabled, _ := arguments.Bool("--verbose"); verboseEnabled {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug(arguments)

	if shouldPrintVersion, _ := arguments.Bool("--version"); shouldPrintVersion {
		fmt.Println(version)
		return
	}

	path, _ := arguments.String("<file>")

	if doRead, _ := arguments.Bool("read"); doRead {
		if err := runRead(path); err != nil {
			log.WithError(err).Error("read failed")
			os.Exit(1)
		}
		return
	}

	if doDecode, _ := arguments.Bool("decode"); doDecode {
		if err := runDecode(path); err != nil {
			log.WithError(err).Error("decode failed")
			os.Exit(1)
		}
		return
	}
}

func runRead(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader, err := typedstream.NewReader(f)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Printf("streamer version %d, big endian %v\n", reader.Header.StreamerVersion, reader.Header.BigEndian)
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%#v\n", ev)
	}
}

func runDecode(path string) error {
	classes.SetupDecoders()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	u, err := archiver.NewUnarchiver(f)
	if err != nil {
		return err
	}
	defer u.Close()

	groups, err := u.DecodeAll()
	if err != nil {
		return err
	}
	for _, group := range groups {
		for _, v := range group.Values {
			fmt.Printf("%+v\n", v)
		}
	}
	return nil
}
