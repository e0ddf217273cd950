package parsers

import (
	"fmt"

	"github.com/username/optifolio/src/parsers/coincall"
	"github.com/username/optifolio/src/parsers/deribit"
)

func GetParser(exchange string) (Parser, error) {
	switch exchange {
	case "deribit":
		return deribit.NewParser(), nil
	case "coincall":
		return coincall.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for exchange: %s", exchange)
	}
}
