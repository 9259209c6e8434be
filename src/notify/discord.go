// Package notify relays governance events from the Redis stream to a
// Discord channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/filedao/src/api/data"
	"github.com/stake-plus/filedao/src/governance"
)

// Sender is the part of *discordgo.Session the notifier uses.
type Sender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Notifier struct {
	sender    Sender
	rdb       *redis.Client
	channelID string
	appURL    string
	block     time.Duration
}

func New(sender Sender, rdb *redis.Client, channelID, appURL string) *Notifier {
	return &Notifier{sender: sender, rdb: rdb, channelID: channelID, appURL: appURL, block: 5 * time.Second}
}

// OpenSession creates and opens a bot session for token.
func OpenSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("discord open: %w", err)
	}
	return dg, nil
}

// Run tails the event stream from the newest entry until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}
		streams, err := n.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{data.EventStream, lastID},
			Count:   10,
			Block:   n.block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Printf("notify: read stream: %v", err)
				time.Sleep(time.Second)
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				ev, err := data.DecodeEvent(msg.Values)
				if err != nil {
					log.Printf("notify: skip %s: %v", msg.ID, err)
					continue
				}
				if err := n.Post(ev); err != nil {
					log.Printf("notify: post %s: %v", msg.ID, err)
				}
			}
		}
	}
}

func (n *Notifier) Post(ev governance.Event) error {
	embed := Embed(ev, n.appURL)
	if embed == nil {
		return nil
	}
	_, err := n.sender.ChannelMessageSendEmbed(n.channelID, embed)
	return err
}

const (
	colorMember   = 0x5865F2
	colorProposal = 0xFEE75C
	colorVote     = 0x57F287
	colorExecuted = 0xEB459E
)

// Embed renders ev for Discord. Unknown kinds yield nil.
func Embed(ev governance.Event, appURL string) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{Timestamp: ev.At.UTC().Format(time.RFC3339)}
	switch ev.Kind {
	case governance.EventMemberAdded:
		e.Title = "Member added"
		e.Color = colorMember
		e.Description = fmt.Sprintf("`%s` joined the DAO", short(ev.Member))
	case governance.EventMemberRemoved:
		e.Title = "Member removed"
		e.Color = colorMember
		e.Description = fmt.Sprintf("`%s` left the DAO", short(ev.Member))
	case governance.EventFileProposed:
		e.Title = fmt.Sprintf("Proposal #%d: %s", ev.ProposalID, ev.Type)
		e.Color = colorProposal
		e.Description = fmt.Sprintf("`%s` proposed to %s **%s**", short(ev.Actor), ev.Type, fileLabel(ev))
		e.Fields = []*discordgo.MessageEmbedField{{Name: "CID", Value: "`" + ev.CID + "`"}}
	case governance.EventVoted:
		vote := "against"
		if ev.Support {
			vote = "for"
		}
		e.Title = fmt.Sprintf("Vote on #%d", ev.ProposalID)
		e.Color = colorVote
		e.Description = fmt.Sprintf("`%s` voted %s", short(ev.Actor), vote)
	case governance.EventProposalExecuted:
		e.Title = fmt.Sprintf("Proposal #%d executed", ev.ProposalID)
		e.Color = colorExecuted
		e.Description = fmt.Sprintf("%s of **%s** took effect", ev.Type, fileLabel(ev))
	default:
		return nil
	}
	if appURL != "" && ev.ProposalID != 0 {
		e.URL = fmt.Sprintf("%s/proposals/%d", appURL, ev.ProposalID)
	}
	return e
}

func fileLabel(ev governance.Event) string {
	if ev.FileName != "" {
		return ev.FileName
	}
	return ev.CID
}

func short(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
