package hub

import "strings"

// Kind is the closed enumeration of operations the service understands.
type Kind string

const (
	KindWalletCreation Kind = "WalletCreation"
	KindWalletDeletion Kind = "WalletDeletion"
	KindGetBalances    Kind = "GetBalances"
	KindCryptoTransfer Kind = "CryptoTransfer"
	KindFiatDeposit    Kind = "FiatDeposit"
	KindFiatWithdrawal Kind = "FiatWithdrawal"
	KindFiatPayment    Kind = "FiatPayment"
	KindBuyCrypto      Kind = "BuyCrypto"
	KindSellCrypto     Kind = "SellCrypto"
	KindFiatHistory    Kind = "FiatHistory"
	KindCryptoHistory  Kind = "CryptoHistory"
)

const (
	requestSuffix  = ".request"
	responseSuffix = ".response"

	// TopicBlockchainError carries every failed or timed out settlement.
	TopicBlockchainError = "blockchain.error.response"
)

type topics struct {
	request  string
	response string // empty means derived from request
}

// kindOrder fixes iteration order; kindTopics must have one entry per member.
var kindOrder = []Kind{
	KindWalletCreation,
	KindWalletDeletion,
	KindGetBalances,
	KindCryptoTransfer,
	KindFiatDeposit,
	KindFiatWithdrawal,
	KindFiatPayment,
	KindBuyCrypto,
	KindSellCrypto,
	KindFiatHistory,
	KindCryptoHistory,
}

var kindTopics = map[Kind]topics{
	KindWalletCreation: {request: "wallet.creation.request"},
	KindWalletDeletion: {request: "wallet.deletion.request"},
	KindGetBalances:    {request: "wallet.balances.request"},
	KindCryptoTransfer: {request: "crypto.transfer.request"},
	KindFiatDeposit:    {request: "fiat.deposit.request"},
	KindFiatWithdrawal: {request: "fiat.withdrawal.request"},
	KindFiatPayment:    {request: "fiat.payment.request"},
	KindBuyCrypto:      {request: "buy.crypto.request"},
	KindSellCrypto:     {request: "sell.crypto.request"},
	KindFiatHistory:    {request: "fiat.transactions.request", response: "fiat.history.response"},
	KindCryptoHistory:  {request: "crypto.transactions.request", response: "crypto.history.response"},
}

var topicKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTopics))
	for k, t := range kindTopics {
		m[t.request] = k
	}
	return m
}()

// Kinds returns every member of the enumeration in declaration order.
func Kinds() []Kind {
	return append([]Kind(nil), kindOrder...)
}

// KindFromTopic resolves the kind bound to an inbound topic.
func KindFromTopic(topic string) (Kind, bool) {
	k, ok := topicKinds[strings.TrimSpace(topic)]
	return k, ok
}

// RequestTopic returns the inbound topic of k.
func (k Kind) RequestTopic() string {
	return kindTopics[k].request
}

// ResponseTopic returns the explicit outbound topic of k, or the request
// topic with its ".request" suffix replaced by ".response".
func (k Kind) ResponseTopic() string {
	t, ok := kindTopics[k]
	if !ok {
		return ""
	}
	if t.response != "" {
		return t.response
	}
	return DeriveResponseTopic(t.request)
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// DeriveResponseTopic substitutes ".response" for a trailing ".request".
func DeriveResponseTopic(topic string) string {
	if strings.HasSuffix(topic, requestSuffix) {
		return strings.TrimSuffix(topic, requestSuffix) + responseSuffix
	}
	return topic + responseSuffix
}

// ResponseTopicFor resolves the outbound topic answering an inbound topic.
func ResponseTopicFor(topic string) string {
	if k, ok := KindFromTopic(topic); ok {
		return k.ResponseTopic()
	}
	return DeriveResponseTopic(topic)
}
