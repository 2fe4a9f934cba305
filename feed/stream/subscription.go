package stream

import (
	"encoding/json"
	"sort"
	"strings"
)

// Subscribe adds tickers ("SYMBOL-EXCHANGE") to the tracked subscription
// set and, when the session is live, sends the subscribe frames. It is
// idempotent: already-subscribed tickers are not sent again. Tickers added
// while disconnected are replayed once the connection is (re)established.
func (c *Client) Subscribe(tickers ...string) error {
	return c.changeSubscriptions(tickers, true)
}

// Unsubscribe removes tickers from the tracked set and, when the session is
// live, sends the unsubscribe frames.
func (c *Client) Unsubscribe(tickers ...string) error {
	return c.changeSubscriptions(tickers, false)
}

func (c *Client) changeSubscriptions(tickers []string, subscribe bool) error {
	c.subMu.Lock()
	if c.hasTerminated {
		c.subMu.Unlock()
		return ErrSubscriptionChangeAfterTerminated
	}
	changed := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if c.subs[t] == subscribe {
			continue
		}
		if subscribe {
			c.subs[t] = true
		} else {
			delete(c.subs, t)
		}
		changed = append(changed, t)
	}
	c.subMu.Unlock()

	if len(changed) == 0 || c.State() != Authenticated {
		return nil
	}

	for _, t := range changed {
		msg, err := subChangeMessage(t, subscribe)
		if err != nil {
			return err
		}
		select {
		case c.subChanges <- msg:
		default:
			// queue full, the next reconnect replays the full set anyway
			c.logger.Warnf("openalgo stream: subscription queue full, dropping change for %s", t)
		}
	}
	return nil
}

// Subscriptions returns the tracked tickers, sorted.
func (c *Client) Subscriptions() []string {
	c.subMu.Lock()
	out := make([]string, 0, len(c.subs))
	for t := range c.subs {
		out = append(out, t)
	}
	c.subMu.Unlock()
	sort.Strings(out)
	return out
}

func subChangeMessage(ticker string, subscribe bool) ([]byte, error) {
	action := "subscribe"
	if !subscribe {
		action = "unsubscribe"
	}
	symbol, exchange := ticker, "NSE"
	if i := strings.LastIndex(ticker, "-"); i >= 0 {
		symbol, exchange = ticker[:i], ticker[i+1:]
	}
	return json.Marshal(map[string]string{
		"action":   action,
		"symbol":   symbol,
		"exchange": exchange,
		"mode":     "ltp",
	})
}
