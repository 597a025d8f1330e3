package signing

const (
	// L1 动作的 EIP-712 域
	ExchangeDomainName    = "Exchange"
	ExchangeDomainVersion = "1"
	ExchangeChainID       = 1337

	// 用户签名动作（转账/提现）的 EIP-712 域
	UserSignedDomainName    = "HyperliquidSignTransaction"
	UserSignedDomainVersion = "1"
	UserSignedChainID       = 0x66eee

	// 两个域都使用零地址作为 verifyingContract
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// phantom agent 的 source：主网 "a"，测试网 "b"
	MainnetSource = "a"
	TestnetSource = "b"
)
