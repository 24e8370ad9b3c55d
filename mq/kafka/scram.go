package kafka

import (
	"github.com/xdg-go/scram"
)

/* ========================================================================
 * SCRAM 认证支持
 * ========================================================================
 * 职责: 提供 Kafka SCRAM 认证能力
 * ======================================================================== */

// SHA256 SCRAM-SHA-256 机制
var SHA256 = scram.SHA256

// SHA512 SCRAM-SHA-512 机制
var SHA512 = scram.SHA512

// XDGSCRAMClient sarama SCRAMClient 实现
type XDGSCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	HashGeneratorFcn scram.HashGeneratorFcn
}

// Begin 开始 SCRAM 认证，未指定机制时默认 SHA256
func (x *XDGSCRAMClient) Begin(userName, password, authzID string) (err error) {
	fcn := x.HashGeneratorFcn
	if fcn == nil {
		fcn = SHA256
	}
	x.Client, err = fcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.ClientConversation = x.Client.NewConversation()
	return nil
}

// Step 执行 SCRAM 认证步骤
func (x *XDGSCRAMClient) Step(challenge string) (response string, err error) {
	return x.ClientConversation.Step(challenge)
}

// Done 判断 SCRAM 认证是否完成
func (x *XDGSCRAMClient) Done() bool {
	return x.ClientConversation.Done()
}
