// Package netconn adapts a net.Conn into a channel.ParentChannel so a Channel
// can be layered on a TCP or Unix connection.
//
//	raw, _ := net.Dial("tcp", addr)
//	cfg, _ := netconn.NewConfig(netconn.WithNonBlocking())
//	parent, _ := netconn.New(raw, cfg)
//	ch, _ := channel.New(channel.Layered{Parent: parent}, engine, channelCfg)
package netconn
