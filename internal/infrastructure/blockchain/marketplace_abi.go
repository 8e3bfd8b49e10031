package blockchain

// MarketplaceABI is the subset of the AgriMarketplace contract interface the wallet layer uses
const MarketplaceABI = `[
	{
		"type": "function",
		"name": "farmers",
		"stateMutability": "view",
		"inputs": [{"name": "", "type": "address"}],
		"outputs": [
			{"name": "wallet", "type": "address"},
			{"name": "name", "type": "string"},
			{"name": "location", "type": "string"},
			{"name": "certHash", "type": "string"},
			{"name": "flags", "type": "uint8"},
			{"name": "registeredAt", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "batchCounter",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "orderCounter",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "registerFarmer",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "name", "type": "string"},
			{"name": "location", "type": "string"},
			{"name": "certHash", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "event",
		"name": "OrderPlaced",
		"anonymous": false,
		"inputs": [
			{"name": "orderId", "type": "uint256", "indexed": true},
			{"name": "batchId", "type": "uint256", "indexed": true},
			{"name": "buyer", "type": "address", "indexed": true},
			{"name": "quantity", "type": "uint256", "indexed": false},
			{"name": "totalPrice", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "OrderCompleted",
		"anonymous": false,
		"inputs": [
			{"name": "orderId", "type": "uint256", "indexed": true},
			{"name": "completedAt", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "OrderCancelled",
		"anonymous": false,
		"inputs": [
			{"name": "orderId", "type": "uint256", "indexed": true},
			{"name": "cancelledBy", "type": "address", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "BatchCreated",
		"anonymous": false,
		"inputs": [
			{"name": "batchId", "type": "uint256", "indexed": true},
			{"name": "farmer", "type": "address", "indexed": true},
			{"name": "productName", "type": "string", "indexed": false},
			{"name": "quantity", "type": "uint256", "indexed": false},
			{"name": "pricePerUnit", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "BatchDeleted",
		"anonymous": false,
		"inputs": [
			{"name": "batchId", "type": "uint256", "indexed": true}
		]
	}
]`
